package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/guilherme-santos/davsync/internal"
	"github.com/guilherme-santos/davsync/internal/config"
	"github.com/guilherme-santos/davsync/internal/logger"
	"github.com/guilherme-santos/davsync/internal/notify"
	"github.com/guilherme-santos/davsync/internal/sqlite"
	"github.com/guilherme-santos/davsync/internal/syncer"
	"github.com/guilherme-santos/davsync/provider"
	"github.com/guilherme-santos/davsync/provider/dav"
	"github.com/guilherme-santos/davsync/provider/google"
)

type app struct {
	cfg      *config.Config
	logger   logger.Logger
	accounts *config.Accounts

	// store is the long-lived handle of the CLI and the notifier. Sync runs
	// open their own.
	store    *sqlite.Storage
	mux      *provider.Mux
	google   *google.Client
	notifier *notify.SettingsNotifier
	syncer   *syncer.Syncer
}

func newApp(cfg *config.Config) (*app, error) {
	log := logger.NewWithFile(cfg.LogLevel, cfg.PrettyLog, cfg.LogFile)

	accounts, err := config.LoadAccounts(cfg.AccountsFile)
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBFile), 0o700); err != nil {
		return nil, err
	}
	store, err := sqlite.Open(cfg.DBFile)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   log,
		accounts: accounts,
		store:    store,
		mux:      provider.NewMux(),
	}

	a.mux.Register(dav.Platform, dav.NewClient(cfg.HTTPTimeout, log.With(logger.String("provider", dav.Platform))))
	if cfg.GoogleCredentialsFile != "" {
		credJSON, err := os.ReadFile(cfg.GoogleCredentialsFile)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("reading google credentials: %w", err)
		}
		a.google, err = google.NewClient(credJSON, log.With(logger.String("provider", google.Platform)))
		if err != nil {
			store.Close()
			return nil, err
		}
		a.mux.Register(google.Platform, a.google)
	}

	a.notifier = notify.NewSettingsNotifier(store, log)
	reporter := notify.NewReporter(a.notifier, log)
	reporter.DefaultRetryDelay = cfg.RetryDelay

	a.syncer = syncer.New(a.openStore, a.mux, reporter, nil, log)
	return a, nil
}

func (a *app) openStore(context.Context) (syncer.Storage, error) {
	s, err := sqlite.Open(a.cfg.DBFile)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("unable to close database", logger.Error(err))
	}
	_ = a.logger.Sync()
}

func (a *app) account(name string) (internal.Account, error) {
	acc, ok := a.accounts.Get(name)
	if !ok {
		return acc, fmt.Errorf("account %q is not configured in %s", name, a.cfg.AccountsFile)
	}
	return acc, nil
}

// selectAccounts returns the named account, or every account when name is
// empty.
func (a *app) selectAccounts(name string) ([]internal.Account, error) {
	if name == "" {
		return a.accounts.Accounts, nil
	}
	acc, err := a.account(name)
	if err != nil {
		return nil, err
	}
	return []internal.Account{acc}, nil
}

// serviceTypes lists the service types the account's platform provides.
func (a *app) serviceTypes(acc internal.Account) []internal.ServiceType {
	p, err := a.mux.Get(acc.Platform)
	if err != nil {
		a.logger.Warn("skipping account", logger.String("account", acc.Name), logger.Error(err))
		return nil
	}
	return p.ServiceTypes()
}

func (a *app) saveAccounts() error {
	return a.accounts.Save(a.cfg.AccountsFile)
}
