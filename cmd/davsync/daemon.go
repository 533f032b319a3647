package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/guilherme-santos/davsync/internal/scheduler"
)

var errNoAccounts = errors.New("no account configured")

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync every configured account periodically",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(a.accounts.Accounts) == 0 {
			return errNoAccounts
		}
		s := scheduler.New(a.syncer, a.cfg.SyncInterval, a.logger)
		s.Start(cmd.Context(), a.accounts.Accounts, a.serviceTypes)
		a.logger.Infof("daemon started, syncing every %s", a.cfg.SyncInterval)

		<-cmd.Context().Done()
		a.logger.Info("shutting down")
		s.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
