package syncer

import (
	"fmt"
	"runtime/debug"

	"github.com/guilherme-santos/davsync/internal"
	"github.com/guilherme-santos/davsync/internal/logger"
)

// safely turns a panic raised by a collaborator into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v\n%s", r, debug.Stack())
		}
	}()
	return fn()
}

func logCollectionSynced(log logger.Logger, col *internal.Collection, stats *internal.SyncStats) {
	fields := internal.CollectionFields(col)
	if stats == nil {
		log.Info("collection synced", fields...)
		return
	}
	if stats.Unchanged {
		log.Info("collection up to date", fields...)
		return
	}
	log.Info("collection synced", append(fields,
		logger.Int("changed", stats.Changed),
		logger.Int("deleted", stats.Deleted))...)
}
