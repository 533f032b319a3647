package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/guilherme-santos/davsync/internal"
	"github.com/guilherme-santos/davsync/internal/logger"
	"github.com/guilherme-santos/davsync/internal/notify"
)

type (
	Mux         = internal.Mux
	Account     = internal.Account
	Collection  = internal.Collection
	ServiceType = internal.ServiceType
)

// Storage is the store handle a run works with. It is acquired through an
// Opener when the run starts and closed when it ends.
type Storage interface {
	internal.Store

	ServiceID(_ context.Context, account string, _ ServiceType) (int64, bool, error)
	SyncEnabledCollections(_ context.Context, serviceID int64) ([]*Collection, error)
	AccountSettings(_ context.Context, account string) (*internal.AccountSettings, error)
	Close() error
}

type Opener func(context.Context) (Storage, error)

// Conditions decides whether an automatic sync may run for an account.
type Conditions interface {
	Check(context.Context, *internal.AccountSettings) bool
}

type Request struct {
	Account Account
	Type    ServiceType
	// Manual is set when the user explicitly asked for the sync, which
	// bypasses the account's sync conditions.
	Manual bool
}

type Status int

const (
	StatusSuccess Status = iota
	StatusSkipped
	StatusNothingToSync
	StatusRetryScheduled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSkipped:
		return "skipped"
	case StatusNothingToSync:
		return "nothing to sync"
	case StatusRetryScheduled:
		return "retry scheduled"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

type Outcome struct {
	Status Status
	// Delay is set for StatusRetryScheduled.
	Delay time.Duration
	// Notification is set for StatusFailed.
	Notification *notify.Notification
	// Synced is the number of collections synced without error.
	Synced int
}

// OK reports whether the run ended without anything to retry or notify.
func (o Outcome) OK() bool {
	switch o.Status {
	case StatusSuccess, StatusSkipped, StatusNothingToSync:
		return true
	}
	return false
}

type Syncer struct {
	open       Opener
	mux        Mux
	reporter   *notify.Reporter
	conditions Conditions
	logger     logger.Logger
}

func New(open Opener, providers Mux, reporter *notify.Reporter, conditions Conditions, log logger.Logger) *Syncer {
	if conditions == nil {
		conditions = NewNetworkConditions()
	}
	return &Syncer{
		open:       open,
		mux:        providers,
		reporter:   reporter,
		conditions: conditions,
		logger:     log,
	}
}

// Run performs one sync attempt for the account and service type. It always
// returns a classified outcome; collaborator errors and panics never escape.
func (s *Syncer) Run(ctx context.Context, req Request) Outcome {
	log := s.logger.With(internal.LogFields(req.Account, req.Type)...)
	run := notify.Run{Account: req.Account.Name, Type: req.Type}

	s.reporter.Begin(ctx, run)

	var store Storage
	err := safely(func() (err error) {
		store, err = s.open(ctx)
		return err
	})
	if err != nil {
		return s.outcome(ctx, run, 0, notify.Failure{
			Err:   fmt.Errorf("opening store: %w", err),
			Phase: notify.PhaseDiscovery,
		})
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("unable to close store", logger.Error(err))
		}
	}()

	var (
		status   Status
		synced   int
		failures []notify.Failure
	)
	err = safely(func() error {
		status, synced, failures = s.run(ctx, log, store, req)
		return nil
	})
	if err != nil {
		status = StatusFailed
		failures = append(failures, notify.Failure{Err: err, Phase: notify.PhaseDiscovery})
	}
	if len(failures) == 0 {
		log.Info("sync complete",
			logger.String("status", status.String()),
			logger.Int("synced", synced))
		return Outcome{Status: status, Synced: synced}
	}
	return s.outcome(ctx, run, synced, failures...)
}

func (s *Syncer) run(ctx context.Context, log logger.Logger, store Storage, req Request) (Status, int, []notify.Failure) {
	discoveryFailure := func(err error) (Status, int, []notify.Failure) {
		return StatusFailed, 0, []notify.Failure{{Err: err, Phase: notify.PhaseDiscovery}}
	}

	if !req.Manual {
		settings, err := store.AccountSettings(ctx, req.Account.Name)
		if err != nil {
			return discoveryFailure(fmt.Errorf("reading account settings: %w", err))
		}
		if !s.conditions.Check(ctx, settings) {
			log.Info("sync conditions not met, skipping")
			return StatusSkipped, 0, nil
		}
	}

	provider, err := s.mux.Get(req.Account.Platform)
	if err != nil {
		return discoveryFailure(err)
	}

	err = safely(func() error {
		return provider.Refresh(ctx, store, req.Account, req.Type)
	})
	if err != nil {
		return discoveryFailure(fmt.Errorf("refreshing collections: %w", err))
	}

	serviceID, ok, err := store.ServiceID(ctx, req.Account.Name, req.Type)
	if err != nil {
		return discoveryFailure(err)
	}
	if !ok {
		log.Info("no service found for account")
		return StatusNothingToSync, 0, nil
	}

	cols, err := store.SyncEnabledCollections(ctx, serviceID)
	if err != nil {
		return discoveryFailure(err)
	}
	if len(cols) == 0 {
		log.Info("no collection selected for sync")
		return StatusNothingToSync, 0, nil
	}
	if !req.Type.MultipleCollections() {
		cols = cols[:1]
	}

	runCtx := &internal.RunContext{
		Type:   req.Type,
		Manual: req.Manual,
		Store:  store,
	}

	var (
		synced   int
		failures []notify.Failure
	)
	for _, col := range cols {
		var stats *internal.SyncStats
		err := safely(func() (err error) {
			stats, err = provider.SyncCollection(ctx, req.Account, col, runCtx)
			return err
		})
		if err != nil {
			log.Warn("unable to sync collection",
				append(internal.CollectionFields(col), logger.Error(err))...)
			failures = append(failures, notify.Failure{
				Err:        err,
				Phase:      notify.PhaseSync,
				Collection: col.URL,
			})
			continue
		}
		synced++
		logCollectionSynced(log, col, stats)
	}

	if len(failures) > 0 {
		return StatusFailed, synced, failures
	}
	return StatusSuccess, synced, nil
}

func (s *Syncer) outcome(ctx context.Context, run notify.Run, synced int, failures ...notify.Failure) Outcome {
	res := s.reporter.Report(ctx, run, failures...)
	if res.Retry {
		return Outcome{Status: StatusRetryScheduled, Delay: res.Delay, Synced: synced}
	}
	return Outcome{Status: StatusFailed, Notification: res.Notification, Synced: synced}
}
