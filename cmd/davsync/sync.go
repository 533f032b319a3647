package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guilherme-santos/davsync/internal"
	"github.com/guilherme-santos/davsync/internal/syncer"
)

var syncFlags struct {
	service string
}

var syncCmd = &cobra.Command{
	Use:   "sync [account]",
	Short: "Sync the selected collections now",
	Long: `Runs one manual sync for every service of the account, or of every
configured account. Manual syncs ignore the account's sync conditions.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVarP(&syncFlags.service, "service", "s", "", "only sync this service type (calendar or contacts)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	var name string
	if len(args) > 0 {
		name = args[0]
	}
	accounts, err := a.selectAccounts(name)
	if err != nil {
		return err
	}

	var only internal.ServiceType
	if syncFlags.service != "" {
		if only, err = internal.ParseServiceType(syncFlags.service); err != nil {
			return err
		}
	}

	failed := 0
	for _, acc := range accounts {
		for _, typ := range a.serviceTypes(acc) {
			if only != "" && typ != only {
				continue
			}
			out := a.syncer.Run(cmd.Context(), syncer.Request{Account: acc, Type: typ, Manual: true})
			printOutcome(cmd, acc, typ, out)
			if !out.OK() {
				failed++
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d sync(s) did not complete", failed)
	}
	return nil
}

func printOutcome(cmd *cobra.Command, acc internal.Account, typ internal.ServiceType, out syncer.Outcome) {
	cmd.Printf("%s %s: %s", acc, typ, out.Status)
	switch out.Status {
	case syncer.StatusSuccess:
		cmd.Printf(" (%d collection(s))", out.Synced)
	case syncer.StatusRetryScheduled:
		cmd.Printf(", retry in %s", out.Delay)
	case syncer.StatusFailed:
		if out.Notification != nil {
			cmd.Printf("\n  %s: %s", out.Notification.Title, out.Notification.Message)
		}
	}
	cmd.Println()
}
