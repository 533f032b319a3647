package internal

import "time"

type Event struct {
	ID        string
	Summary   string
	StartsAt  time.Time
	UpdatedAt time.Time
	Status    EventStatus
}

type EventStatus string

func (s EventStatus) String() string {
	return string(s)
}

var (
	Confirmed EventStatus = "confirmed"
	Tentative EventStatus = "tentative"
	Cancelled EventStatus = "cancelled"
)

// SyncStats summarises what a per-collection sync observed on the remote.
type SyncStats struct {
	Changed int
	Deleted int
	// Unchanged is set when the remote reported no change since the last sync.
	Unchanged bool
}
