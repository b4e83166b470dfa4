package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Kioku/common/version"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Kioku %s\n", version.Info())
		},
	})
}
