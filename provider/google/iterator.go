package google

import (
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/guilherme-santos/davsync/internal"
)

type eventOrError struct {
	e        *internal.Event
	lastSync string
	err      error
}

type eventIterator struct {
	events   chan eventOrError
	current  eventOrError
	lastSync string
	err      error
}

func newEventIterator() *eventIterator {
	return &eventIterator{
		events: make(chan eventOrError),
	}
}

func (it *eventIterator) Next() bool {
	for {
		cur, ok := <-it.events
		if !ok {
			it.current = eventOrError{}
			return false
		}
		if cur.lastSync != "" {
			it.lastSync = cur.lastSync
		}
		if cur.err != nil {
			it.err = cur.err
			it.current = eventOrError{}
			return false
		}
		if cur.e != nil {
			it.current = cur
			return true
		}
	}
}

func (it *eventIterator) Event() *internal.Event {
	if it.current.e == nil {
		panic("google: Event() called before Next()")
	}
	return it.current.e
}

// LastSync is only known once the iterator is exhausted.
func (it *eventIterator) LastSync() string {
	return it.lastSync
}

func (it *eventIterator) Err() error {
	return it.err
}

func newEvent(event *calendar.Event) *internal.Event {
	updatedAt, _ := time.Parse(time.RFC3339, event.Updated)
	if event.Status == "cancelled" {
		return &internal.Event{
			ID:        event.Id,
			UpdatedAt: updatedAt,
			Status:    internal.Cancelled,
		}
	}

	var startsAt time.Time
	if event.Start != nil {
		if event.Start.DateTime != "" {
			startsAt, _ = time.Parse(time.RFC3339, event.Start.DateTime)
		} else {
			startsAt, _ = time.Parse(time.DateOnly, event.Start.Date)
		}
	}

	status := internal.Confirmed
	if event.Status == "tentative" {
		status = internal.Tentative
	}
	return &internal.Event{
		ID:        event.Id,
		Summary:   event.Summary,
		StartsAt:  startsAt,
		UpdatedAt: updatedAt,
		Status:    status,
	}
}
