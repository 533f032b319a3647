package internal

import (
	"context"
)

type Mux interface {
	Get(platform string) (Provider, error)
}

// Store is the part of the metadata store a provider may touch while
// refreshing collections or syncing one of them.
type Store interface {
	ReplaceCollections(_ context.Context, account string, _ ServiceType, _ []CollectionInfo) (int64, error)

	Setting(_ context.Context, name string) (string, bool, error)
	SetSetting(_ context.Context, name, value string) error
	DeleteSetting(_ context.Context, name string) error
	Credentials(_ context.Context, account string) (string, error)
}

// RunContext describes the sync run a collection is synced under.
type RunContext struct {
	Type   ServiceType
	Manual bool
	Store  Store
}

type Provider interface {
	ServiceTypes() []ServiceType
	// Refresh re-enumerates the remote collections of the account and
	// replaces the stored set through Store.ReplaceCollections.
	Refresh(_ context.Context, _ Store, _ Account, _ ServiceType) error
	SyncCollection(_ context.Context, _ Account, _ *Collection, _ *RunContext) (*SyncStats, error)
}

type Iterator interface {
	Next() bool
	Event() *Event
	LastSync() string
	Err() error
}
