package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/guilherme-santos/davsync/internal/config"
)

var (
	rootFlags struct {
		verbose bool
	}

	// a is built before every command runs.
	a *app
)

var rootCmd = &cobra.Command{
	Use:           "davsync",
	Short:         "Keep contacts and calendars in sync with CardDAV, CalDAV and Google",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if rootFlags.verbose {
			cfg.LogLevel = "debug"
		}

		var err error
		a, err = newApp(cfg)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootFlags.verbose, "verbose", "v", false, "log at debug level")
}

func execute(ctx context.Context, args ...string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if a != nil {
		a.Close()
		a = nil
	}
	return err
}
