package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/readloop/internal/config"
	"github.com/fakeyudi/readloop/internal/logging"
	"github.com/fakeyudi/readloop/internal/orchestrator"
	"github.com/fakeyudi/readloop/internal/session"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

var logLevel string

var rootCmd = &cobra.Command{
	Use:           "readloop",
	Short:         "Drive repeated card reads and report on them",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.ConfigureRuntime()

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded

		switch {
		case logLevel != "":
			logging.SetLevel(logLevel)
		case cfg.LogLevel != "":
			logging.SetLevel(cfg.LogLevel)
		}
		log.Debug().Str("device", cfg.DeviceID).Str("output_dir", cfg.OutputDir).Msg("config loaded")
		return nil
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

func openStore() (session.Store, error) {
	store, err := session.NewStore()
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	return store, nil
}

// loadClassifier returns the configured table, or the built-in one.
func loadClassifier() (*orchestrator.Classifier, error) {
	if cfg.ErrorTablePath == "" {
		return orchestrator.DefaultClassifier(), nil
	}
	return orchestrator.LoadClassifier(cfg.ErrorTablePath)
}

// loadSummary resolves "latest" or a session id from the store.
func loadSummary(store session.Store, id string) (session.Summary, error) {
	if id == "" || id == "latest" {
		return store.Latest()
	}
	return store.Load(id)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
}
