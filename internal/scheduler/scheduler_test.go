package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guilherme-santos/davsync/internal"
	"github.com/guilherme-santos/davsync/internal/logger"
	"github.com/guilherme-santos/davsync/internal/syncer"
)

type fakeRunner struct {
	mu       sync.Mutex
	requests []syncer.Request
	outcome  syncer.Outcome
	calls    chan syncer.Request
}

func newFakeRunner(out syncer.Outcome) *fakeRunner {
	return &fakeRunner{outcome: out, calls: make(chan syncer.Request, 100)}
}

func (r *fakeRunner) Run(_ context.Context, req syncer.Request) syncer.Outcome {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	out := r.outcome
	r.mu.Unlock()

	r.calls <- req
	return out
}

func (r *fakeRunner) wait(t *testing.T) syncer.Request {
	t.Helper()
	select {
	case req := <-r.calls:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a sync run")
		return syncer.Request{}
	}
}

func (r *fakeRunner) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case req := <-r.calls:
		t.Fatalf("unexpected sync run: %+v", req)
	case <-time.After(d):
	}
}

var (
	alice = internal.Account{Name: "alice@example.com", Platform: "dav"}
	bob   = internal.Account{Name: "bob@gmail.com", Platform: "google"}
)

func allTypes(acc internal.Account) []internal.ServiceType {
	if acc.Platform == "google" {
		return []internal.ServiceType{internal.Calendar}
	}
	return internal.ServiceTypes
}

func TestScheduler_RunsEveryPair(t *testing.T) {
	runner := newFakeRunner(syncer.Outcome{Status: syncer.StatusSuccess})
	s := New(runner, time.Hour, logger.Nop())

	s.Start(context.Background(), []internal.Account{alice, bob}, allTypes)
	defer s.Stop()

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		req := runner.wait(t)
		assert.False(t, req.Manual)
		seen[req.Account.Name+"/"+req.Type.String()] = true
	}
	assert.Equal(t, map[string]bool{
		"alice@example.com/ADDRESS_BOOK": true,
		"alice@example.com/CALENDAR":     true,
		"bob@gmail.com/CALENDAR":         true,
	}, seen)
	runner.none(t, 50*time.Millisecond)
}

func TestScheduler_Interval(t *testing.T) {
	runner := newFakeRunner(syncer.Outcome{Status: syncer.StatusSuccess})
	s := New(runner, 10*time.Millisecond, logger.Nop())

	s.Start(context.Background(), []internal.Account{bob}, allTypes)
	defer s.Stop()

	for i := 0; i < 3; i++ {
		runner.wait(t)
	}
}

func TestScheduler_RetryDelayReplacesInterval(t *testing.T) {
	runner := newFakeRunner(syncer.Outcome{Status: syncer.StatusRetryScheduled, Delay: time.Hour})
	s := New(runner, 10*time.Millisecond, logger.Nop())

	s.Start(context.Background(), []internal.Account{bob}, allTypes)
	defer s.Stop()

	runner.wait(t)
	runner.none(t, 100*time.Millisecond)
}

func TestScheduler_Trigger(t *testing.T) {
	runner := newFakeRunner(syncer.Outcome{Status: syncer.StatusSuccess})
	s := New(runner, time.Hour, logger.Nop())

	assert.False(t, s.Trigger(bob.Name, internal.Calendar))

	s.Start(context.Background(), []internal.Account{bob}, allTypes)
	defer s.Stop()
	runner.wait(t)

	require.True(t, s.Trigger(bob.Name, internal.Calendar))
	req := runner.wait(t)
	assert.True(t, req.Manual)

	assert.False(t, s.Trigger(bob.Name, internal.AddressBook))
}

func TestScheduler_StopWaitsForLoops(t *testing.T) {
	runner := newFakeRunner(syncer.Outcome{Status: syncer.StatusSuccess})
	s := New(runner, time.Hour, logger.Nop())

	s.Start(context.Background(), []internal.Account{alice}, allTypes)
	runner.wait(t)
	runner.wait(t)

	done := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestScheduler_ContextCancel(t *testing.T) {
	runner := newFakeRunner(syncer.Outcome{Status: syncer.StatusSuccess})
	s := New(runner, time.Hour, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx, []internal.Account{bob}, allTypes)
	runner.wait(t)

	cancel()
	s.Stop()
}
