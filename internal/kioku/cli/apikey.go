package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Kioku/common/environment"
	"github.com/bdobrica/Kioku/common/redact"
)

var keyFromEnv string

func init() {
	apikey := &cobra.Command{
		Use:   "apikey",
		Short: "Manage completion API keys",
	}

	set := &cobra.Command{
		Use:   "set <service> [key]",
		Short: "Store or replace the API key for a service",
		Long:  "Store or replace the API key for a service. With --from-env the key is read from the named environment variable instead of the command line.",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runAPIKeySet,
	}
	set.Flags().StringVar(&keyFromEnv, "from-env", "", "Read the key from this environment variable")
	show := &cobra.Command{
		Use:   "show <service>",
		Short: "Show the stored API key for a service (redacted)",
		Args:  cobra.ExactArgs(1),
		RunE:  runAPIKeyShow,
	}

	apikey.AddCommand(set, show)
	RootCmd.AddCommand(apikey)
}

func runAPIKeySet(cmd *cobra.Command, args []string) error {
	service := args[0]

	var key string
	switch {
	case len(args) == 2 && keyFromEnv != "":
		return fmt.Errorf("pass the key as an argument or with --from-env, not both")
	case len(args) == 2:
		key = args[1]
	case keyFromEnv != "":
		v, err := environment.RequiredString(keyFromEnv)
		if err != nil {
			return err
		}
		key = v
	default:
		return fmt.Errorf("missing key: pass it as an argument or use --from-env")
	}

	s, _, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.SetAPIKey(cmd.Context(), service, key); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "API key for %q updated (%s)\n", service, redact.Mask(key))
	return nil
}

func runAPIKeyShow(cmd *cobra.Command, args []string) error {
	service := args[0]

	s, _, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	key, err := s.GetAPIKey(cmd.Context(), service)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", service, redact.Mask(key))
	return nil
}
