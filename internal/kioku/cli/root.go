// Package cli implements the kioku command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Kioku/internal/kioku/config"
	"github.com/bdobrica/Kioku/internal/kioku/observability"
	"github.com/bdobrica/Kioku/internal/kioku/store"
)

var (
	dbPath     string
	configPath string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "kioku",
	Short:         "Chat bot with persistent per-user memories",
	Long:          "Kioku answers chat messages with an LLM, using memories users store with !remember as context.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $DATABASE_PATH or memories.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default: $KIOKU_CONFIG)")
}

// loadConfig resolves the configuration and applies the --db override.
func loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, err
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	observability.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func openStore() (*store.Store, config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, config.Config{}, err
	}
	s, err := store.New(cfg.DatabasePath)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("open store: %w", err)
	}
	return s, cfg, nil
}
