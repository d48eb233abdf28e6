// Package cli implements the arion-plugins command line interface.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arion-app/arion-plugins/internal/config"
	"github.com/arion-app/arion-plugins/internal/logger"
	"github.com/arion-app/arion-plugins/pkg/platform"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFile    string
	workspace  string
	jsonOutput bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "arion-plugins",
		Short:         "Arion plugin platform",
		Long:          "Discovers, validates and runs Arion plugins, and serves the platform over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "platform config file (default ~/.arion/plugins.json)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "also write logs to this file")
	cmd.PersistentFlags().StringVar(&opts.workspace, "workspace", "", "workspace root for workspace-tier discovery")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "emit machine-readable JSON output")

	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newToolsCmd(opts))
	cmd.AddCommand(newServeCmd(opts))

	return cmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// newLogger builds the process logger from the root flags.
func (o *rootOptions) newLogger() (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:   o.logLevel,
		File:    o.logFile,
		Console: true,
		Pretty:  true,
	})
}

// newPlatform wires a platform from the root flags.
func (o *rootOptions) newPlatform(log zerolog.Logger) *platform.Platform {
	return platform.New(platform.Options{
		Settings:      config.NewLoader(o.configPath),
		Logger:        log,
		WorkspaceRoot: o.workspace,
	})
}
