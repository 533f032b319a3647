package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guilherme-santos/davsync/internal"
	"github.com/guilherme-santos/davsync/internal/logger"
	"github.com/guilherme-santos/davsync/internal/notify"
	"github.com/guilherme-santos/davsync/internal/sqlite"
)

// --- collaborators ---

type fakeProvider struct {
	collections  []internal.CollectionInfo
	refreshErr   error
	refreshPanic any
	syncErrs     map[string]error

	refreshes int
	synced    []string
}

func (p *fakeProvider) ServiceTypes() []internal.ServiceType {
	return internal.ServiceTypes
}

func (p *fakeProvider) Refresh(ctx context.Context, store internal.Store, acc internal.Account, typ internal.ServiceType) error {
	p.refreshes++
	if p.refreshPanic != nil {
		panic(p.refreshPanic)
	}
	if p.refreshErr != nil {
		return p.refreshErr
	}
	_, err := store.ReplaceCollections(ctx, acc.Name, typ, p.collections)
	return err
}

func (p *fakeProvider) SyncCollection(_ context.Context, _ internal.Account, col *internal.Collection, _ *internal.RunContext) (*internal.SyncStats, error) {
	p.synced = append(p.synced, col.URL)
	if err := p.syncErrs[col.URL]; err != nil {
		return nil, err
	}
	return &internal.SyncStats{Changed: 1}, nil
}

type fakeMux map[string]internal.Provider

func (m fakeMux) Get(platform string) (internal.Provider, error) {
	p, ok := m[platform]
	if !ok {
		return nil, fmt.Errorf("provider %q is not implemented", platform)
	}
	return p, nil
}

type fakeNotifier struct {
	notified  []*notify.Notification
	cancelled int
}

func (n *fakeNotifier) Notify(_ context.Context, _ string, notif *notify.Notification) error {
	n.notified = append(n.notified, notif)
	return nil
}

func (n *fakeNotifier) Cancel(context.Context, string) error {
	n.cancelled++
	return nil
}

type conditionsFunc func(*internal.AccountSettings) bool

func (f conditionsFunc) Check(_ context.Context, s *internal.AccountSettings) bool { return f(s) }

// trackedStorage counts how many times a run released its handle. The
// underlying database stays open so tests can inspect it afterwards.
type trackedStorage struct {
	*sqlite.Storage
	closes *int
}

func (s trackedStorage) Close() error {
	*s.closes++
	return nil
}

// --- fixture ---

type fixture struct {
	syncer   *Syncer
	store    *sqlite.Storage
	provider *fakeProvider
	notifier *fakeNotifier
	opens    int
	closes   int
	met      bool
}

var (
	alice = internal.Account{Name: "alice@example.com", Platform: "dav"}
	bob   = internal.Account{Name: "bob@example.com", Platform: "dav"}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "services.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	f := &fixture{
		store:    store,
		provider: &fakeProvider{syncErrs: map[string]error{}},
		notifier: &fakeNotifier{},
		met:      true,
	}
	open := func(context.Context) (Storage, error) {
		f.opens++
		return trackedStorage{Storage: store, closes: &f.closes}, nil
	}
	conditions := conditionsFunc(func(*internal.AccountSettings) bool { return f.met })
	reporter := notify.NewReporter(f.notifier, logger.Nop())

	f.syncer = New(open, fakeMux{"dav": f.provider}, reporter, conditions, logger.Nop())
	return f
}

func (f *fixture) selectAll(t *testing.T, acc internal.Account, typ internal.ServiceType) {
	t.Helper()
	ctx := context.Background()

	id, ok, err := f.store.ServiceID(ctx, acc.Name, typ)
	require.NoError(t, err)
	require.True(t, ok)
	cols, err := f.store.Collections(ctx, id)
	require.NoError(t, err)
	for _, col := range cols {
		require.NoError(t, f.store.SetSyncEnabled(ctx, col.ID, true))
	}
}

// --- tests ---

func TestRun_SelectedAddressBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.collections = []internal.CollectionInfo{{URL: "/contacts/default/"}}

	out := f.syncer.Run(ctx, Request{Account: alice, Type: internal.AddressBook, Manual: true})
	assert.Equal(t, StatusNothingToSync, out.Status)
	assert.True(t, out.OK())
	assert.Empty(t, f.provider.synced)

	f.selectAll(t, alice, internal.AddressBook)

	id, ok, err := f.store.ServiceID(ctx, alice.Name, internal.AddressBook)
	require.NoError(t, err)
	require.True(t, ok)
	cols, err := f.store.SyncEnabledCollections(ctx, id)
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "/contacts/default/", cols[0].URL)

	out = f.syncer.Run(ctx, Request{Account: alice, Type: internal.AddressBook, Manual: true})
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, 1, out.Synced)
	assert.Equal(t, []string{"/contacts/default/"}, f.provider.synced)
	assert.Empty(t, f.notifier.notified)
}

func TestRun_RefreshServiceUnavailable(t *testing.T) {
	f := newFixture(t)
	f.provider.refreshErr = &internal.ServiceUnavailableError{RetryAfter: 120 * time.Second}

	out := f.syncer.Run(context.Background(), Request{Account: alice, Type: internal.AddressBook, Manual: true})
	assert.Equal(t, StatusRetryScheduled, out.Status)
	assert.Equal(t, 120*time.Second, out.Delay)
	assert.Nil(t, out.Notification)
	assert.Equal(t, 1, f.notifier.cancelled)
	assert.Empty(t, f.notifier.notified)
	assert.Empty(t, f.provider.synced)
}

func TestRun_DelegateUnauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.collections = []internal.CollectionInfo{{URL: "/contacts/default/"}}
	f.syncer.Run(ctx, Request{Account: alice, Type: internal.AddressBook, Manual: true})
	f.selectAll(t, alice, internal.AddressBook)

	f.provider.syncErrs["/contacts/default/"] = &internal.UnauthorizedError{Err: errors.New("401 Unauthorized")}

	out := f.syncer.Run(ctx, Request{Account: alice, Type: internal.AddressBook, Manual: true})
	assert.Equal(t, StatusFailed, out.Status)
	require.NotNil(t, out.Notification)
	require.Len(t, f.notifier.notified, 1)

	details := f.notifier.notified[0].Details
	assert.Equal(t, alice.Name, details.Account)
	assert.Empty(t, details.Authority)
	assert.Empty(t, details.Phase)
}

func TestRun_ConditionsNotMet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.met = false
	f.provider.collections = []internal.CollectionInfo{{URL: "/contacts/default/"}}

	out := f.syncer.Run(ctx, Request{Account: alice, Type: internal.AddressBook})
	assert.Equal(t, StatusSkipped, out.Status)
	assert.True(t, out.OK())
	assert.Zero(t, f.provider.refreshes)
	assert.Empty(t, f.notifier.notified)

	_, ok, err := f.store.ServiceID(ctx, alice.Name, internal.AddressBook)
	require.NoError(t, err)
	assert.False(t, ok, "metadata untouched")

	out = f.syncer.Run(ctx, Request{Account: alice, Type: internal.AddressBook, Manual: true})
	assert.Equal(t, StatusNothingToSync, out.Status)
	assert.Equal(t, 1, f.provider.refreshes, "manual sync bypasses conditions")
}

func TestRun_NoService(t *testing.T) {
	f := newFixture(t)
	f.provider.refreshErr = nil
	f.provider.collections = nil

	// A refresh that never creates the service leaves nothing to sync.
	f.syncer.mux = fakeMux{"dav": noopRefresh{f.provider}}

	out := f.syncer.Run(context.Background(), Request{Account: alice, Type: internal.Calendar, Manual: true})
	assert.Equal(t, StatusNothingToSync, out.Status)
	assert.Empty(t, f.notifier.notified)
}

type noopRefresh struct{ *fakeProvider }

func (noopRefresh) Refresh(context.Context, internal.Store, internal.Account, internal.ServiceType) error {
	return nil
}

func TestRun_CalendarsContinueAfterFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.collections = []internal.CollectionInfo{
		{URL: "/cal/a/"}, {URL: "/cal/b/"}, {URL: "/cal/c/"},
	}
	f.syncer.Run(ctx, Request{Account: bob, Type: internal.Calendar, Manual: true})
	f.selectAll(t, bob, internal.Calendar)

	f.provider.syncErrs["/cal/b/"] = errors.New("malformed response")

	out := f.syncer.Run(ctx, Request{Account: bob, Type: internal.Calendar, Manual: true})
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, 2, out.Synced)
	assert.Equal(t, []string{"/cal/a/", "/cal/b/", "/cal/c/"}, f.provider.synced)

	require.Len(t, f.notifier.notified, 1)
	details := f.notifier.notified[0].Details
	assert.Equal(t, "calendar", details.Authority)
	assert.Equal(t, notify.PhaseSync, details.Phase)
	assert.Equal(t, "/cal/b/", details.Collection)
}

func TestRun_CalendarTransientBeatsSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.collections = []internal.CollectionInfo{{URL: "/cal/a/"}, {URL: "/cal/b/"}}
	f.syncer.Run(ctx, Request{Account: bob, Type: internal.Calendar, Manual: true})
	f.selectAll(t, bob, internal.Calendar)

	f.provider.syncErrs["/cal/a/"] = &internal.ServiceUnavailableError{}

	out := f.syncer.Run(ctx, Request{Account: bob, Type: internal.Calendar, Manual: true})
	assert.Equal(t, StatusRetryScheduled, out.Status)
	assert.Equal(t, notify.DefaultRetryDelay, out.Delay)
	assert.Equal(t, 1, out.Synced)
	assert.Empty(t, f.notifier.notified)
}

func TestRun_AddressBookSyncsOneCollection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.collections = []internal.CollectionInfo{{URL: "/contacts/first/"}, {URL: "/contacts/second/"}}
	f.syncer.Run(ctx, Request{Account: alice, Type: internal.AddressBook, Manual: true})
	f.selectAll(t, alice, internal.AddressBook)

	out := f.syncer.Run(ctx, Request{Account: alice, Type: internal.AddressBook, Manual: true})
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, []string{"/contacts/first/"}, f.provider.synced)
}

func TestRun_RefreshPanicIsStructural(t *testing.T) {
	f := newFixture(t)
	f.provider.refreshPanic = "out of memory"

	out := f.syncer.Run(context.Background(), Request{Account: alice, Type: internal.AddressBook, Manual: true})
	assert.Equal(t, StatusFailed, out.Status)
	require.Len(t, f.notifier.notified, 1)

	notif := f.notifier.notified[0]
	assert.Equal(t, notify.PhaseDiscovery, notif.Details.Phase)
	assert.Equal(t, "contacts", notif.Details.Authority)
	assert.Contains(t, notif.Details.Cause, "out of memory")
	assert.Empty(t, f.provider.synced)
}

func TestRun_ConditionsPanicIsStructural(t *testing.T) {
	f := newFixture(t)
	f.syncer.conditions = conditionsFunc(func(*internal.AccountSettings) bool {
		panic("boom")
	})

	var out Outcome
	require.NotPanics(t, func() {
		out = f.syncer.Run(context.Background(), Request{Account: alice, Type: internal.Calendar})
	})
	assert.Equal(t, StatusFailed, out.Status)
	require.Len(t, f.notifier.notified, 1)

	notif := f.notifier.notified[0]
	assert.Equal(t, notify.PhaseDiscovery, notif.Details.Phase)
	assert.Contains(t, notif.Details.Cause, "boom")
	assert.Zero(t, f.provider.refreshes)
	assert.Equal(t, f.opens, f.closes)
}

func TestRun_OpenPanicIsStructural(t *testing.T) {
	f := newFixture(t)
	f.syncer.open = func(context.Context) (Storage, error) {
		panic("driver missing")
	}

	var out Outcome
	require.NotPanics(t, func() {
		out = f.syncer.Run(context.Background(), Request{Account: alice, Type: internal.Calendar, Manual: true})
	})
	assert.Equal(t, StatusFailed, out.Status)
	require.Len(t, f.notifier.notified, 1)
	assert.Contains(t, f.notifier.notified[0].Details.Cause, "driver missing")
}

func TestRun_UnknownPlatform(t *testing.T) {
	f := newFixture(t)

	acc := internal.Account{Name: "carol", Platform: "exchange"}
	out := f.syncer.Run(context.Background(), Request{Account: acc, Type: internal.Calendar, Manual: true})
	assert.Equal(t, StatusFailed, out.Status)
	assert.Len(t, f.notifier.notified, 1)
}

func TestRun_OpenFailure(t *testing.T) {
	f := newFixture(t)
	f.syncer.open = func(context.Context) (Storage, error) {
		return nil, errors.New("database is locked")
	}

	out := f.syncer.Run(context.Background(), Request{Account: alice, Type: internal.Calendar, Manual: true})
	assert.Equal(t, StatusFailed, out.Status)
	assert.Zero(t, f.provider.refreshes)
	require.Len(t, f.notifier.notified, 1)
	assert.Contains(t, f.notifier.notified[0].Details.Cause, "database is locked")
}

func TestRun_ReleasesStoreOnEveryPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.collections = []internal.CollectionInfo{{URL: "/contacts/default/"}}

	f.met = false
	f.syncer.Run(ctx, Request{Account: alice, Type: internal.AddressBook})
	f.met = true
	f.syncer.Run(ctx, Request{Account: alice, Type: internal.AddressBook})
	f.provider.refreshErr = errors.New("boom")
	f.syncer.Run(ctx, Request{Account: alice, Type: internal.AddressBook})
	f.provider.refreshErr = nil
	f.provider.refreshPanic = "boom"
	f.syncer.Run(ctx, Request{Account: alice, Type: internal.AddressBook})

	assert.Equal(t, 4, f.opens)
	assert.Equal(t, 4, f.closes)
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.collections = []internal.CollectionInfo{
		{URL: "/cal/a/", DisplayName: "A"}, {URL: "/cal/b/", DisplayName: "B"},
	}
	f.syncer.Run(ctx, Request{Account: bob, Type: internal.Calendar, Manual: true})
	f.selectAll(t, bob, internal.Calendar)

	first := f.syncer.Run(ctx, Request{Account: bob, Type: internal.Calendar, Manual: true})
	var before bytes.Buffer
	require.NoError(t, f.store.Dump(ctx, &before))

	second := f.syncer.Run(ctx, Request{Account: bob, Type: internal.Calendar, Manual: true})
	var after bytes.Buffer
	require.NoError(t, f.store.Dump(ctx, &after))

	assert.Equal(t, first, second)
	assert.Equal(t, before.String(), after.String())
}

func TestNetworkConditions(t *testing.T) {
	c := &NetworkConditions{
		interfaces: func() ([]net.Interface, error) {
			return []net.Interface{
				{Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
				{Name: "wlan0", Flags: 0},
				{Name: "eth0", Flags: net.FlagUp},
			}, nil
		},
	}
	ctx := context.Background()

	assert.False(t, c.Check(ctx, nil))
	assert.False(t, c.Check(ctx, &internal.AccountSettings{SyncEnabled: false}))
	assert.True(t, c.Check(ctx, &internal.AccountSettings{SyncEnabled: true}))
	assert.True(t, c.Check(ctx, &internal.AccountSettings{SyncEnabled: true, AllowedNetworks: []string{"eth0"}}))
	assert.False(t, c.Check(ctx, &internal.AccountSettings{SyncEnabled: true, AllowedNetworks: []string{"wlan0"}}))

	c.interfaces = func() ([]net.Interface, error) { return nil, errors.New("no netlink") }
	assert.False(t, c.Check(ctx, &internal.AccountSettings{SyncEnabled: true, AllowedNetworks: []string{"eth0"}}))
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "retry scheduled", StatusRetryScheduled.String())
	assert.Equal(t, "status(42)", Status(42).String())
}
