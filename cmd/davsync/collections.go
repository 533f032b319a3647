package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var collectionsCmd = &cobra.Command{
	Use:     "collections",
	Aliases: []string{"cols"},
	Short:   "List and select the collections to sync",
}

var collectionsListCmd = &cobra.Command{
	Use:   "list [account]",
	Short: "List known collections and whether they are synced",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var account string
		if len(args) > 0 {
			account = args[0]
		}

		ctx := cmd.Context()
		svcs, err := a.store.Services(ctx, account)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tACCOUNT\tSERVICE\tSYNC\tNAME\tURL")
		for _, svc := range svcs {
			cols, err := a.store.Collections(ctx, svc.ID)
			if err != nil {
				return err
			}
			for _, col := range cols {
				sync := "no"
				if col.SyncEnabled {
					sync = "yes"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					col.ID, svc.AccountName, svc.Type, sync, col.DisplayName, col.URL)
			}
		}
		return w.Flush()
	},
}

func newSelectCmd(use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <collection-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid collection id %q", arg)
				}
				if err := a.store.SetSyncEnabled(cmd.Context(), id, enabled); err != nil {
					return err
				}
				col, err := a.store.Collection(cmd.Context(), id)
				if err != nil {
					return err
				}
				cmd.Printf("%s: sync %s\n", col, map[bool]string{true: "enabled", false: "disabled"}[enabled])
			}
			return nil
		},
	}
}

func init() {
	collectionsCmd.AddCommand(
		collectionsListCmd,
		newSelectCmd("enable", "Select collections for sync", true),
		newSelectCmd("disable", "Stop syncing collections", false),
	)
	rootCmd.AddCommand(collectionsCmd)
}
