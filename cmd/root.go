// cmd/root.go

// Package cmd wires the screenpilot CLI: configuration loading, logger
// setup, and the detect, run, graph and history subcommands.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/varkai/screenpilot/internal/config"
	"github.com/varkai/screenpilot/internal/observability"
)

var (
	cfgFile string

	// loadedConfig is populated by the root PersistentPreRunE before any
	// subcommand runs.
	loadedConfig *config.Config
)

// NewRootCommand builds the root command with all subcommands attached.
// Each invocation returns a fresh tree so parsed flags never leak between
// executions.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "screenpilot",
		Short:   "Screenpilot drives applications by what is on their screen.",
		Version: Version,
		// Errors are logged once in Execute; without these cobra would
		// print them a second time.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(); err != nil {
				return err
			}

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				// Fall back to a plain console logger so the failure is visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "screenpilot"})
				return err
			}

			observability.InitializeLogger(cfg.Logger)
			loadedConfig = cfg

			observability.GetLogger().Debug("starting screenpilot",
				zap.String("version", Version),
				zap.String("capture_mode", cfg.Capture.Mode))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml or $HOME/.screenpilot/config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newDetectCmd(),
		newRunCmd(),
		newGraphCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the CLI against a signal-aware context and returns the
// command error for main to turn into an exit code.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		observability.GetLogger().Error("command failed", zap.Error(err))
	}
	observability.Sync()
	return err
}

// initializeConfig seeds viper with defaults, then layers the config file
// and SCREENPILOT_* environment variables on top.
func initializeConfig() error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		for _, dir := range config.SearchPaths() {
			v.AddConfigPath(dir)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SCREENPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file anywhere on the search path; defaults and env
		// variables carry the run.
	}
	return nil
}
