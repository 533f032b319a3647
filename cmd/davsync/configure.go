package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/guilherme-santos/davsync/internal"
	"github.com/guilherme-santos/davsync/provider/dav"
	"github.com/guilherme-santos/davsync/provider/google"
)

var configureFlags struct {
	platform string
	url      string
	username string
}

var configureCmd = &cobra.Command{
	Use:   "configure <name>",
	Short: "Add an account or change its credentials",
	Long: `Stores the account in the accounts file, asks for its credentials
(a password for DAV accounts, an OAuth consent for Google accounts) and
validates them by refreshing the account's collections.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigure,
}

func init() {
	flags := configureCmd.Flags()
	flags.StringVar(&configureFlags.platform, "platform", "", "account platform (dav or google)")
	flags.StringVar(&configureFlags.url, "url", "", "DAV server URL")
	flags.StringVar(&configureFlags.username, "username", "", "DAV user name")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	acc, ok := a.accounts.Get(args[0])
	if !ok {
		acc = internal.Account{Name: args[0], Platform: dav.Platform}
	}
	if v := configureFlags.platform; v != "" {
		acc.Platform = v
	}
	if v := configureFlags.url; v != "" {
		acc.URL = v
	}
	if v := configureFlags.username; v != "" {
		acc.Username = v
	}

	secret, err := askCredentials(ctx, cmd, acc)
	if err != nil {
		return err
	}
	if err := a.store.SetCredentials(ctx, acc.Name, secret); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	a.accounts.Put(acc)
	if err := a.saveAccounts(); err != nil {
		return err
	}

	p, err := a.mux.Get(acc.Platform)
	if err != nil {
		return err
	}
	for _, typ := range p.ServiceTypes() {
		if err := p.Refresh(ctx, a.store, acc, typ); err != nil {
			return fmt.Errorf("validating credentials: %w", err)
		}
		cmd.Printf("%s %s: collections refreshed\n", acc, typ)
	}
	cmd.Println(`Select the collections to sync with "davsync collections enable".`)
	return nil
}

func askCredentials(ctx context.Context, cmd *cobra.Command, acc internal.Account) (string, error) {
	switch acc.Platform {
	case google.Platform:
		if a.google == nil {
			return "", errors.New("google is not configured, set DAVSYNC_GOOGLE_CREDENTIALS_FILE")
		}
		token, err := a.google.Login(ctx, cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("google: logging in: %w", err)
		}
		return string(token), nil

	case dav.Platform:
		if acc.URL == "" {
			return "", errors.New("dav accounts need --url")
		}
		cmd.Printf("Password for %s: ", acc.Username)
		return readPassword(cmd.InOrStdin())
	}
	return "", fmt.Errorf("unknown platform %q", acc.Platform)
}

// readPassword reads without echo from a terminal, or a line otherwise.
func readPassword(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}
