package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/guilherme-santos/davsync/internal"
	"github.com/guilherme-santos/davsync/internal/logger"
)

const DefaultRetryDelay = 60 * time.Second

type Kind int

const (
	Structural Kind = iota
	Transient
	Authorization
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Authorization:
		return "authorization"
	default:
		return "structural"
	}
}

func Classify(err error) Kind {
	if _, ok := internal.IsServiceUnavailable(err); ok {
		return Transient
	}
	if internal.IsUnauthorized(err) {
		return Authorization
	}
	return Structural
}

// Phase is the step of the sync pipeline a failure happened in.
type Phase string

const (
	PhaseDiscovery Phase = "discovery"
	PhaseSync      Phase = "sync"
)

func (p Phase) Description() string {
	switch p {
	case PhaseDiscovery:
		return "Refreshing collections"
	case PhaseSync:
		return "Syncing collection"
	}
	return string(p)
}

type Failure struct {
	Err        error
	Phase      Phase
	Collection string
}

type Run struct {
	Account string
	Type    internal.ServiceType
}

func (r Run) Tag() string {
	return "sync-" + r.Type.Authority() + "/" + r.Account
}

// Details is what the details view of a notification shows. Authority,
// Phase and Collection are left empty for authorization failures.
type Details struct {
	Account    string `json:"account"`
	Authority  string `json:"authority,omitempty"`
	Phase      Phase  `json:"phase,omitempty"`
	Collection string `json:"collection,omitempty"`
	Cause      string `json:"cause"`
}

type Notification struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Cause     error     `json:"-"`
	Details   Details   `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// Result holds exactly one effect: either a retry delay or a notification.
// The zero value means there was nothing to report.
type Result struct {
	Retry        bool
	Delay        time.Duration
	Notification *Notification
}

type Notifier interface {
	Notify(_ context.Context, tag string, _ *Notification) error
	Cancel(_ context.Context, tag string) error
}

type Reporter struct {
	notifier Notifier
	logger   logger.Logger
	now      func() time.Time

	DefaultRetryDelay time.Duration
}

func NewReporter(notifier Notifier, log logger.Logger) *Reporter {
	return &Reporter{
		notifier:          notifier,
		logger:            log,
		now:               time.Now,
		DefaultRetryDelay: DefaultRetryDelay,
	}
}

// Begin withdraws the notification left by a previous run of the pair.
func (r *Reporter) Begin(ctx context.Context, run Run) {
	if err := r.notifier.Cancel(ctx, run.Tag()); err != nil {
		r.logger.Warn("unable to cancel notification",
			logger.String("tag", run.Tag()),
			logger.Error(err))
	}
}

// Report turns the failures of one run into a single effect. Any
// non-transient failure wins and the first one is notified; otherwise the
// run is retried after the largest delay suggested by the server.
func (r *Reporter) Report(ctx context.Context, run Run, failures ...Failure) Result {
	if len(failures) == 0 {
		return Result{}
	}

	var (
		notified *Failure
		delay    time.Duration
	)
	for i := range failures {
		f := &failures[i]
		if Classify(f.Err) != Transient {
			if notified == nil {
				notified = f
			}
			continue
		}
		if su, ok := internal.IsServiceUnavailable(f.Err); ok && su.RetryAfter > delay {
			delay = su.RetryAfter
		}
	}

	if notified == nil {
		if delay <= 0 {
			delay = r.DefaultRetryDelay
		}
		r.logger.Info("service unavailable, retry scheduled",
			logger.String("account", run.Account),
			logger.String("service", run.Type.String()),
			logger.Duration("delay", delay))
		return Result{Retry: true, Delay: delay}
	}

	n := r.notification(run, *notified)
	r.logger.Error("sync failed",
		logger.String("account", run.Account),
		logger.String("service", run.Type.String()),
		logger.String("phase", string(notified.Phase)),
		logger.String("kind", Classify(notified.Err).String()),
		logger.Int("failures", len(failures)),
		logger.Error(notified.Err))

	if err := r.notifier.Notify(ctx, run.Tag(), n); err != nil {
		r.logger.Warn("unable to show notification",
			logger.String("tag", run.Tag()),
			logger.Error(err))
	}
	return Result{Notification: n}
}

func (r *Reporter) notification(run Run, f Failure) *Notification {
	n := &Notification{
		Title:     title(run),
		Message:   f.Phase.Description(),
		Cause:     f.Err,
		CreatedAt: r.now().UTC(),
		Details: Details{
			Account: run.Account,
			Cause:   f.Err.Error(),
		},
	}
	if Classify(f.Err) == Authorization {
		n.Message = "Credentials rejected, please update the account credentials"
		return n
	}
	n.Details.Authority = run.Type.Authority()
	n.Details.Phase = f.Phase
	n.Details.Collection = f.Collection
	return n
}

func title(run Run) string {
	if run.Type == internal.Calendar {
		return fmt.Sprintf("Calendar sync error (%s)", run.Account)
	}
	return fmt.Sprintf("Contacts sync error (%s)", run.Account)
}
