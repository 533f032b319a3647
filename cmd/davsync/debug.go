package main

import (
	"github.com/spf13/cobra"

	"github.com/guilherme-santos/davsync/internal/notify"
)

var debugCmd = &cobra.Command{
	Use:   "debug [account]",
	Short: "Print the last sync failures and a dump of the database",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var name string
		if len(args) > 0 {
			name = args[0]
		}
		accounts, err := a.selectAccounts(name)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		for _, acc := range accounts {
			for _, typ := range a.serviceTypes(acc) {
				tag := notify.Run{Account: acc.Name, Type: typ}.Tag()
				notif, ok, err := notify.Last(ctx, a.store, tag)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				d := notif.Details
				cmd.Printf("%s (%s)\n", notif.Title, notif.CreatedAt.Format("2006-01-02 15:04:05"))
				cmd.Printf("  %s\n", notif.Message)
				cmd.Printf("  account: %s\n", d.Account)
				if d.Authority != "" {
					cmd.Printf("  authority: %s\n", d.Authority)
				}
				if d.Phase != "" {
					cmd.Printf("  phase: %s\n", d.Phase.Description())
				}
				if d.Collection != "" {
					cmd.Printf("  collection: %s\n", d.Collection)
				}
				cmd.Printf("  cause: %s\n\n", d.Cause)
			}
		}

		cmd.Println("DATABASE DUMP")
		return a.store.Dump(ctx, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
}
