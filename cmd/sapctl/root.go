package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rpattn/sapingest/internal/config"
	"github.com/rpattn/sapingest/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// exitError carries a non-default process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

type rootOptions struct {
	configDir string
	logLevel  string
}

func (o *rootOptions) load() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(o.configDir)
	if err != nil {
		return config.Config{}, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	// Logs go to stderr so stdout stays machine readable.
	logger := logging.NewWithOutput(cfg.Log, os.Stderr)
	return cfg, logger, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "sapctl",
		Short:         "SAP spreadsheet import tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", ".", "Directory holding config.yaml and .env")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(newImportCmd(opts))
	cmd.AddCommand(newInspectCmd(opts))
	cmd.AddCommand(newBatchesCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	return cmd
}

// Execute runs the CLI. Exit code 1 is a failure, 2 an import that
// completed with failed rows.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}
