package sqlite

import (
	"database/sql"

	"github.com/guilherme-santos/davsync/internal"
)

type Service struct {
	ID          int64  `db:"id"`
	AccountName string `db:"account_name"`
	Service     string `db:"service"`
}

func (s Service) Convert() *internal.Service {
	return &internal.Service{
		ID:          s.ID,
		AccountName: s.AccountName,
		Type:        internal.ServiceType(s.Service),
	}
}

type Collection struct {
	ID             int64          `db:"id"`
	ServiceID      int64          `db:"service_id"`
	URL            string         `db:"url"`
	ReadOnly       bool           `db:"read_only"`
	DisplayName    sql.NullString `db:"display_name"`
	Description    sql.NullString `db:"description"`
	Color          sql.NullInt32  `db:"color"`
	TimeZone       sql.NullString `db:"time_zone"`
	SupportsEvents sql.NullBool   `db:"supports_events"`
	SupportsTasks  sql.NullBool   `db:"supports_tasks"`
	SyncEnabled    bool           `db:"sync_enabled"`
}

func (c Collection) Convert() *internal.Collection {
	col := &internal.Collection{
		ID:          c.ID,
		ServiceID:   c.ServiceID,
		SyncEnabled: c.SyncEnabled,
		CollectionInfo: internal.CollectionInfo{
			URL:         c.URL,
			ReadOnly:    c.ReadOnly,
			DisplayName: c.DisplayName.String,
			Description: c.Description.String,
			TimeZone:    c.TimeZone.String,
		},
	}
	if c.Color.Valid {
		v := c.Color.Int32
		col.Color = &v
	}
	if c.SupportsEvents.Valid {
		v := c.SupportsEvents.Bool
		col.SupportsEvents = &v
	}
	if c.SupportsTasks.Valid {
		v := c.SupportsTasks.Bool
		col.SupportsTasks = &v
	}
	return col
}

// collectionArgs returns the refresh-owned column values in the order
// read_only, display_name, description, color, time_zone, supports_events,
// supports_tasks.
func collectionArgs(info internal.CollectionInfo) []any {
	return []any{
		info.ReadOnly,
		nullString(info.DisplayName),
		nullString(info.Description),
		nullInt32(info.Color),
		nullString(info.TimeZone),
		nullBool(info.SupportsEvents),
		nullBool(info.SupportsTasks),
	}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullInt32(v *int32) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: *v, Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}
