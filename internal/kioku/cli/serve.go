package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Kioku/common/version"
	"github.com/bdobrica/Kioku/internal/kioku/app"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP events endpoint and chat transports",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Kioku %s\n", version.Info())

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize kioku: %w", err)
	}
	defer a.Stop()

	return a.Run()
}
