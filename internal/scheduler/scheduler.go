package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/guilherme-santos/davsync/internal"
	"github.com/guilherme-santos/davsync/internal/logger"
	"github.com/guilherme-santos/davsync/internal/syncer"
)

type Runner interface {
	Run(context.Context, syncer.Request) syncer.Outcome
}

type pair struct {
	account string
	typ     internal.ServiceType
}

// Scheduler runs periodic syncs, one goroutine per account and service type,
// so runs of the same pair never overlap.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   logger.Logger

	mu       sync.Mutex
	triggers map[pair]chan struct{}
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(runner Runner, interval time.Duration, log logger.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   log,
		triggers: make(map[pair]chan struct{}),
		stopCh:   make(chan struct{}),
	}
}

// Start syncs every pair immediately and then on each interval. A run that
// asks for a retry replaces the next interval with its delay.
func (s *Scheduler) Start(ctx context.Context, accounts []internal.Account, types func(internal.Account) []internal.ServiceType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range accounts {
		for _, typ := range types(acc) {
			p := pair{account: acc.Name, typ: typ}
			if _, ok := s.triggers[p]; ok {
				continue
			}
			trigger := make(chan struct{}, 1)
			s.triggers[p] = trigger

			s.wg.Add(1)
			go s.loop(ctx, acc, typ, trigger)
		}
	}
}

func (s *Scheduler) loop(ctx context.Context, acc internal.Account, typ internal.ServiceType, trigger chan struct{}) {
	defer s.wg.Done()

	log := s.logger.With(internal.LogFields(acc, typ)...)
	manual := false
	for {
		next := s.interval
		out := s.runner.Run(ctx, syncer.Request{Account: acc, Type: typ, Manual: manual})
		if out.Status == syncer.StatusRetryScheduled && out.Delay > 0 {
			next = out.Delay
		}
		log.Debug("next sync scheduled",
			logger.String("status", out.Status.String()),
			logger.Duration("in", next))

		timer := time.NewTimer(next)
		select {
		case <-timer.C:
			manual = false
		case <-trigger:
			timer.Stop()
			log.Info("manual sync triggered")
			manual = true
		case <-s.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// Trigger asks for an immediate manual sync of the pair. It reports false
// when the pair is not scheduled.
func (s *Scheduler) Trigger(account string, typ internal.ServiceType) bool {
	s.mu.Lock()
	trigger, ok := s.triggers[pair{account: account, typ: typ}]
	s.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case trigger <- struct{}{}:
	default:
	}
	return true
}

// Stop ends every loop and waits for running syncs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
