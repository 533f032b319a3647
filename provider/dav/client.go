package dav

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/emersion/go-webdav/carddav"

	"github.com/guilherme-santos/davsync/internal"
	"github.com/guilherme-santos/davsync/internal/logger"
)

const Platform = "dav"

type Client struct {
	httpClient *http.Client
	logger     logger.Logger
}

func NewClient(timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

func (c *Client) ServiceTypes() []internal.ServiceType {
	return internal.ServiceTypes
}

// session holds the clients of one account for the duration of a call.
type session struct {
	status *statusClient
	http   webdav.HTTPClient
	dav    *webdav.Client
}

func (c *Client) session(ctx context.Context, store internal.Store, acc internal.Account) (*session, error) {
	if acc.URL == "" {
		return nil, fmt.Errorf("dav: account %s has no URL", acc)
	}

	status := newStatusClient(c.httpClient)
	var hc webdav.HTTPClient = status
	if acc.Username != "" {
		password, err := store.Credentials(ctx, acc.Name)
		if errors.Is(err, internal.ErrNotFound) {
			return nil, &internal.UnauthorizedError{Err: fmt.Errorf("dav: no password for %s", acc)}
		}
		if err != nil {
			return nil, err
		}
		hc = webdav.HTTPClientWithBasicAuth(status, acc.Username, password)
	}

	dav, err := webdav.NewClient(hc, acc.URL)
	if err != nil {
		return nil, fmt.Errorf("dav: %w", err)
	}
	return &session{status: status, http: hc, dav: dav}, nil
}

// Refresh walks principal, home set and collections and stores the result
// as the collections of the service.
func (c *Client) Refresh(ctx context.Context, store internal.Store, acc internal.Account, typ internal.ServiceType) error {
	s, err := c.session(ctx, store, acc)
	if err != nil {
		return err
	}

	principal, err := s.dav.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return fmt.Errorf("dav: finding principal: %w", s.status.wrap(err))
	}

	var infos []internal.CollectionInfo
	switch typ {
	case internal.AddressBook:
		infos, err = c.addressBooks(ctx, s, acc, principal)
	case internal.Calendar:
		infos, err = c.calendars(ctx, s, acc, principal)
	default:
		return fmt.Errorf("dav: %s: %w", typ, internal.ErrUnsupportedService)
	}
	if err != nil {
		return err
	}

	_, err = store.ReplaceCollections(ctx, acc.Name, typ, infos)
	if err != nil {
		return fmt.Errorf("dav: storing collections: %w", err)
	}
	c.logger.Debug("collections refreshed",
		append(internal.LogFields(acc, typ), logger.Int("collections", len(infos)))...)
	return nil
}

func (c *Client) addressBooks(ctx context.Context, s *session, acc internal.Account, principal string) ([]internal.CollectionInfo, error) {
	cc, err := carddav.NewClient(s.http, acc.URL)
	if err != nil {
		return nil, fmt.Errorf("dav: %w", err)
	}
	homeSet, err := cc.FindAddressBookHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("dav: finding address book home set: %w", s.status.wrap(err))
	}
	books, err := cc.FindAddressBooks(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("dav: listing address books: %w", s.status.wrap(err))
	}

	infos := make([]internal.CollectionInfo, 0, len(books))
	for _, book := range books {
		infos = append(infos, internal.CollectionInfo{
			URL:         book.Path,
			DisplayName: book.Name,
			Description: book.Description,
		})
	}
	return infos, nil
}

func (c *Client) calendars(ctx context.Context, s *session, acc internal.Account, principal string) ([]internal.CollectionInfo, error) {
	cc, err := caldav.NewClient(s.http, acc.URL)
	if err != nil {
		return nil, fmt.Errorf("dav: %w", err)
	}
	homeSet, err := cc.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("dav: finding calendar home set: %w", s.status.wrap(err))
	}
	cals, err := cc.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("dav: listing calendars: %w", s.status.wrap(err))
	}

	infos := make([]internal.CollectionInfo, 0, len(cals))
	for _, cal := range cals {
		info := internal.CollectionInfo{
			URL:         cal.Path,
			DisplayName: cal.Name,
			Description: cal.Description,
		}
		if len(cal.SupportedComponentSet) > 0 {
			events := slices.Contains(cal.SupportedComponentSet, "VEVENT")
			tasks := slices.Contains(cal.SupportedComponentSet, "VTODO")
			info.SupportsEvents = &events
			info.SupportsTasks = &tasks
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// SyncCollection compares the members of the collection against the ETags
// seen on the previous run and stores the new set.
func (c *Client) SyncCollection(ctx context.Context, acc internal.Account, col *internal.Collection, run *internal.RunContext) (*internal.SyncStats, error) {
	s, err := c.session(ctx, run.Store, acc)
	if err != nil {
		return nil, err
	}

	members, err := s.dav.ReadDir(ctx, col.URL, false)
	if err != nil {
		return nil, fmt.Errorf("dav: listing %s: %w", col.URL, s.status.wrap(err))
	}

	current := make(map[string]string, len(members))
	for _, fi := range members {
		if fi.IsDir || samePath(fi.Path, col.URL) {
			continue
		}
		tag := fi.ETag
		if tag == "" {
			tag = fi.ModTime.UTC().Format(time.RFC3339)
		}
		current[fi.Path] = tag
	}

	key := etagsKey(acc.Name, col)
	previous, seen, err := loadETags(ctx, run.Store, key)
	if err != nil {
		return nil, err
	}

	stats := diffETags(previous, current)
	stats.Unchanged = seen && stats.Changed == 0 && stats.Deleted == 0
	if stats.Unchanged {
		return stats, nil
	}

	raw, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	if err := run.Store.SetSetting(ctx, key, string(raw)); err != nil {
		return nil, err
	}
	return stats, nil
}

func diffETags(previous, current map[string]string) *internal.SyncStats {
	stats := new(internal.SyncStats)
	for p, tag := range current {
		if old, ok := previous[p]; !ok || old != tag {
			stats.Changed++
		}
	}
	for p := range previous {
		if _, ok := current[p]; !ok {
			stats.Deleted++
		}
	}
	return stats
}

func loadETags(ctx context.Context, store internal.Store, key string) (map[string]string, bool, error) {
	raw, ok, err := store.Setting(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var tags map[string]string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		// Unreadable state is treated as a first sync.
		return nil, false, nil
	}
	return tags, true, nil
}

func etagsKey(account string, col *internal.Collection) string {
	return internal.SettingKey(account, Platform, "etags", strconv.FormatInt(col.ID, 10))
}

func samePath(a, b string) bool {
	return path.Clean("/"+strings.Trim(a, "/")) == path.Clean("/"+strings.Trim(b, "/"))
}
