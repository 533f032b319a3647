package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/guilherme-santos/davsync/internal"
	"github.com/guilherme-santos/davsync/internal/logger"
)

const Platform = "google"

type Client struct {
	oauthCfg *oauth2.Config
	logger   logger.Logger

	// RedirectAddr is where Login listens for the OAuth callback.
	RedirectAddr string
	// endpoint overrides the calendar API base path.
	endpoint string
}

func NewClient(credJSON []byte, log logger.Logger) (*Client, error) {
	oauthCfg, err := google.ConfigFromJSON(credJSON, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("google: parsing credentials file: %v", err)
	}

	return &Client{
		oauthCfg:     oauthCfg,
		logger:       log,
		RedirectAddr: ":8080",
	}, nil
}

func (c *Client) ServiceTypes() []internal.ServiceType {
	return []internal.ServiceType{internal.Calendar}
}

// Refresh lists the calendars of the account and stores them as the
// collections of its calendar service.
func (c *Client) Refresh(ctx context.Context, store internal.Store, acc internal.Account, typ internal.ServiceType) error {
	if typ != internal.Calendar {
		return fmt.Errorf("google: %s: %w", typ, internal.ErrUnsupportedService)
	}

	svc, err := c.calendarSvc(ctx, store, acc)
	if err != nil {
		return err
	}

	var (
		infos         []internal.CollectionInfo
		nextPageToken string
	)
	for {
		list, err := svc.CalendarList.List().Context(ctx).PageToken(nextPageToken).Do()
		if err != nil {
			return mapError(err)
		}
		for _, entry := range list.Items {
			infos = append(infos, newCollectionInfo(entry))
		}
		nextPageToken = list.NextPageToken
		if nextPageToken == "" {
			break
		}
	}

	_, err = store.ReplaceCollections(ctx, acc.Name, typ, infos)
	if err != nil {
		return fmt.Errorf("google: storing calendars: %w", err)
	}
	c.logger.Debug("calendars refreshed",
		append(internal.LogFields(acc, typ), logger.Int("calendars", len(infos)))...)
	return nil
}

// SyncCollection pulls the events changed since the last stored sync token.
// A token the server no longer accepts triggers one full listing.
func (c *Client) SyncCollection(ctx context.Context, acc internal.Account, col *internal.Collection, run *internal.RunContext) (*internal.SyncStats, error) {
	svc, err := c.calendarSvc(ctx, run.Store, acc)
	if err != nil {
		return nil, err
	}

	key := syncTokenKey(acc.Name, col)
	lastSync, _, err := run.Store.Setting(ctx, key)
	if err != nil {
		return nil, err
	}

	stats, nextSync, err := c.changes(ctx, svc, col, lastSync)
	if err != nil && lastSync != "" && syncTokenExpired(err) {
		c.logger.Info("sync token expired, listing every event", internal.CollectionFields(col)...)
		if err := run.Store.DeleteSetting(ctx, key); err != nil {
			return nil, err
		}
		lastSync = ""
		stats, nextSync, err = c.changes(ctx, svc, col, "")
	}
	if err != nil {
		return nil, mapError(err)
	}

	stats.Unchanged = lastSync != "" && stats.Changed == 0 && stats.Deleted == 0
	if nextSync != "" {
		if err := run.Store.SetSetting(ctx, key, nextSync); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (c *Client) changes(ctx context.Context, svc *calendar.Service, col *internal.Collection, lastSync string) (*internal.SyncStats, string, error) {
	it := c.NewEventsSince(ctx, svc, col, lastSync)

	stats := new(internal.SyncStats)
	for it.Next() {
		if it.Event().Status == internal.Cancelled {
			stats.Deleted++
		} else {
			stats.Changed++
		}
	}
	if err := it.Err(); err != nil {
		return nil, "", err
	}
	return stats, it.LastSync(), nil
}

func (c *Client) NewEventsSince(ctx context.Context, svc *calendar.Service, col *internal.Collection, lastSync string) internal.Iterator {
	eventsCall := svc.Events.
		List(col.URL).
		Context(ctx).
		ShowDeleted(true).
		SingleEvents(true)
	if lastSync != "" {
		eventsCall = eventsCall.SyncToken(lastSync)
	}

	it := newEventIterator()
	go c.events(ctx, col, eventsCall, it.events)
	return it
}

func (c *Client) events(ctx context.Context, col *internal.Collection, call *calendar.EventsListCall, eventCh chan eventOrError) {
	defer close(eventCh)

	send := func(item eventOrError) bool {
		select {
		case eventCh <- item:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var nextPageToken string
	for {
		events, err := call.PageToken(nextPageToken).Do()
		if err != nil {
			c.logger.Debug("unable to get list of events",
				append(internal.CollectionFields(col), logger.Error(err))...)
			send(eventOrError{err: err})
			return
		}

		for _, item := range events.Items {
			if !send(eventOrError{e: newEvent(item)}) {
				return
			}
		}
		nextPageToken = events.NextPageToken
		if nextPageToken == "" {
			send(eventOrError{lastSync: events.NextSyncToken})
			return
		}
	}
}

// Login runs the OAuth consent flow and returns the token to be stored as
// the account credentials.
func (c *Client) Login(ctx context.Context, w io.Writer) ([]byte, error) {
	state := fmt.Sprintf("davsync-%d", time.Now().UTC().Nanosecond())
	authURL := c.oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(w, "\nGo to the following link in your browser\n%s\n", authURL)

	mux := http.NewServeMux()
	server := &http.Server{
		Addr:    c.RedirectAddr,
		Handler: mux,
	}

	var (
		token   *oauth2.Token
		authErr error
	)

	mux.HandleFunc("/davsync", func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			go server.Shutdown(ctx)
		}()

		query := req.URL.Query()
		if query.Get("state") != state {
			authErr = errors.New("oauth link is not valid")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		token, authErr = c.oauthCfg.Exchange(ctx, query.Get("code"))
		if authErr != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, "Unable to retrieve token:", authErr)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "All good, you can close this window!")
	})

	svrErr := server.ListenAndServe()
	if svrErr != nil && svrErr != http.ErrServerClosed {
		return nil, svrErr
	}
	if authErr != nil {
		return nil, authErr
	}
	return json.Marshal(token)
}

func (c *Client) calendarSvc(ctx context.Context, store internal.Store, acc internal.Account) (*calendar.Service, error) {
	creds, err := store.Credentials(ctx, acc.Name)
	if errors.Is(err, internal.ErrNotFound) {
		return nil, &internal.UnauthorizedError{Err: fmt.Errorf("google: no token for %s", acc)}
	}
	if err != nil {
		return nil, err
	}

	var tok *oauth2.Token
	if err := json.Unmarshal([]byte(creds), &tok); err != nil {
		return nil, &internal.UnauthorizedError{Err: fmt.Errorf("google: decoding token: %w", err)}
	}

	opts := []option.ClientOption{option.WithHTTPClient(c.oauthCfg.Client(ctx, tok))}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	return calendar.NewService(ctx, opts...)
}

func syncTokenKey(account string, col *internal.Collection) string {
	return internal.SettingKey(account, Platform, "sync_token", strconv.FormatInt(col.ID, 10))
}

func newCollectionInfo(entry *calendar.CalendarListEntry) internal.CollectionInfo {
	name := entry.SummaryOverride
	if name == "" {
		name = entry.Summary
	}
	supportsEvents := true
	return internal.CollectionInfo{
		URL:            entry.Id,
		ReadOnly:       entry.AccessRole != "owner" && entry.AccessRole != "writer",
		DisplayName:    name,
		Description:    entry.Description,
		Color:          parseColor(entry.BackgroundColor),
		TimeZone:       entry.TimeZone,
		SupportsEvents: &supportsEvents,
	}
}

// parseColor converts "#rrggbb" into an opaque ARGB value.
func parseColor(hex string) *int32 {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return nil
	}
	rgb, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil
	}
	argb := int32(uint32(0xff000000) | uint32(rgb))
	return &argb
}
