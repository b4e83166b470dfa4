package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Kioku/internal/kioku/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the database tables and seed the placeholder API key",
		Args:  cobra.NoArgs,
		RunE:  runSetup,
	}

	RootCmd.AddCommand(cmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	// store.New runs Setup; running it again here keeps the command explicit.
	s, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Setup(cmd.Context()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Database ready at %s\n", cfg.DatabasePath)

	service := cfg.LLM.Service
	if service == "" {
		service = string(cfg.Kind())
	}
	key, err := s.GetAPIKey(cmd.Context(), service)
	switch {
	case errors.Is(err, store.ErrNotFound):
		fmt.Fprintf(out, "No API key stored for %q. Run: kioku apikey set %s <key>\n", service, service)
	case err != nil:
		return err
	case key == store.PlaceholderAPIKey:
		fmt.Fprintf(out, "API key for %q is the placeholder. Run: kioku apikey set %s <key>\n", service, service)
	default:
		fmt.Fprintf(out, "API key for %q is configured.\n", service)
	}
	return nil
}
