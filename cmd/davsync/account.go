package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage configured accounts",
}

var accountRenameCmd = &cobra.Command{
	Use:   "rename <old-name> <new-name>",
	Short: "Rename an account, keeping its services, selection and settings",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldName, newName := args[0], args[1]
		if err := a.accounts.Rename(oldName, newName); err != nil {
			return err
		}

		n, err := a.store.RenameAccount(cmd.Context(), oldName, newName)
		if err != nil {
			return err
		}
		if err := a.saveAccounts(); err != nil {
			return err
		}
		cmd.Printf("Account %q renamed to %q (%d service(s))\n", oldName, newName, n)
		return nil
	},
}

var accountRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an account and everything stored for it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		ctx := cmd.Context()

		if err := a.store.RemoveAccount(ctx, name); err != nil {
			return err
		}
		if a.accounts.Remove(name) {
			if err := a.saveAccounts(); err != nil {
				return err
			}
		}
		cmd.Printf("Account %q removed\n", name)
		return nil
	},
}

var accountSettingsFlags struct {
	syncEnabled bool
	networks    []string
}

var accountSettingsCmd = &cobra.Command{
	Use:   "settings <name>",
	Short: "Show or change when automatic syncs may run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		ctx := cmd.Context()
		if _, err := a.account(name); err != nil {
			return err
		}

		settings, err := a.store.AccountSettings(ctx, name)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("sync-enabled") || flags.Changed("networks") {
			if flags.Changed("sync-enabled") {
				settings.SyncEnabled = accountSettingsFlags.syncEnabled
			}
			if flags.Changed("networks") {
				settings.AllowedNetworks = accountSettingsFlags.networks
			}
			if err := a.store.SaveAccountSettings(ctx, name, *settings); err != nil {
				return err
			}
		}

		networks := "any"
		if len(settings.AllowedNetworks) > 0 {
			networks = strings.Join(settings.AllowedNetworks, ", ")
		}
		cmd.Printf("sync enabled: %t\nnetworks: %s\n", settings.SyncEnabled, networks)
		return nil
	},
}

func init() {
	accountSettingsCmd.Flags().BoolVar(&accountSettingsFlags.syncEnabled, "sync-enabled", true, "allow automatic syncs")
	accountSettingsCmd.Flags().StringSliceVar(&accountSettingsFlags.networks, "networks", nil, "network interfaces automatic syncs are limited to (empty = any)")

	accountCmd.AddCommand(accountRenameCmd, accountRemoveCmd, accountSettingsCmd)
	rootCmd.AddCommand(accountCmd)
}
