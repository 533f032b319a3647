package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/guilherme-santos/davsync/internal"
	"github.com/guilherme-santos/davsync/internal/notify"
)

const DriverName = "sqlite3"

type Storage struct {
	db *sqlx.DB
}

// DSN enables foreign keys (required for the collections cascade), WAL so
// readers don't block the refresh transaction, and immediate transactions so
// concurrent writers wait on the busy timeout instead of failing to upgrade.
func DSN(filename string) string {
	return "file:" + filename + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
}

func Open(filename string) (*Storage, error) {
	db, err := sql.Open(DriverName, DSN(filename))
	if err != nil {
		return nil, err
	}
	s := &Storage{
		db: sqlx.NewDb(db, DriverName),
	}
	if err := s.RunMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return s, nil
}

func (s Storage) Close() error {
	return s.db.Close()
}

func (s Storage) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s Storage) EnsureService(ctx context.Context, account string, typ internal.ServiceType) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) (err error) {
		id, err = ensureService(ctx, tx, account, typ)
		return err
	})
	return id, err
}

func ensureService(ctx context.Context, q sqlx.ExtContext, account string, typ internal.ServiceType) (int64, error) {
	id, ok, err := serviceID(ctx, q, account, typ)
	if err != nil || ok {
		return id, err
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO services (account_name, service) VALUES (?, ?)
	`, account, typ.String())
	if err != nil {
		return 0, fmt.Errorf("creating service %s/%s: %w", account, typ, err)
	}
	return res.LastInsertId()
}

// ServiceID returns false when the account has no service of that type yet.
func (s Storage) ServiceID(ctx context.Context, account string, typ internal.ServiceType) (int64, bool, error) {
	return serviceID(ctx, s.db, account, typ)
}

func serviceID(ctx context.Context, q sqlx.QueryerContext, account string, typ internal.ServiceType) (int64, bool, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id, `
		SELECT id FROM services WHERE account_name = ? AND service = ?
	`, account, typ.String())
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s Storage) Service(ctx context.Context, id int64) (*internal.Service, error) {
	var svc Service
	err := s.db.GetContext(ctx, &svc, `
		SELECT id, account_name, service FROM services WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("service %d: %w", id, internal.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return svc.Convert(), nil
}

func (s Storage) AccountName(ctx context.Context, serviceID int64) (string, error) {
	svc, err := s.Service(ctx, serviceID)
	if err != nil {
		return "", err
	}
	return svc.AccountName, nil
}

func (s Storage) ServiceType(ctx context.Context, serviceID int64) (internal.ServiceType, error) {
	svc, err := s.Service(ctx, serviceID)
	if err != nil {
		return "", err
	}
	return svc.Type, nil
}

// Services lists the services of account, or of every account when account
// is empty.
func (s Storage) Services(ctx context.Context, account string) ([]*internal.Service, error) {
	var (
		svcs []Service
		err  error
	)
	if account == "" {
		err = s.db.SelectContext(ctx, &svcs, `
			SELECT id, account_name, service FROM services ORDER BY id
		`)
	} else {
		err = s.db.SelectContext(ctx, &svcs, `
			SELECT id, account_name, service FROM services WHERE account_name = ? ORDER BY id
		`, account)
	}
	if err != nil {
		return nil, err
	}

	res := make([]*internal.Service, len(svcs))
	for i, svc := range svcs {
		res[i] = svc.Convert()
	}
	return res, nil
}

func (s Storage) UpsertCollection(ctx context.Context, serviceID int64, url string, info internal.CollectionInfo) (int64, error) {
	info.URL = url

	var id int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) (err error) {
		id, err = upsertCollection(ctx, tx, serviceID, info)
		return err
	})
	return id, err
}

// upsertCollection never touches sync_enabled and keeps the row id, so
// upserting unchanged attributes leaves the table untouched.
func upsertCollection(ctx context.Context, tx *sqlx.Tx, serviceID int64, info internal.CollectionInfo) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `
		SELECT id FROM collections WHERE service_id = ? AND url = ?
	`, serviceID, info.URL)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		args := append([]any{serviceID, info.URL}, collectionArgs(info)...)
		res, err := tx.ExecContext(ctx, `
			INSERT INTO collections (service_id, url, read_only, display_name, description,
				color, time_zone, supports_events, supports_tasks)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, args...)
		if err != nil {
			return 0, fmt.Errorf("inserting collection %s: %w", info.URL, err)
		}
		return res.LastInsertId()
	case err != nil:
		return 0, err
	}

	args := append(collectionArgs(info), id)
	_, err = tx.ExecContext(ctx, `
		UPDATE collections
		SET read_only = ?, display_name = ?, description = ?, color = ?,
			time_zone = ?, supports_events = ?, supports_tasks = ?
		WHERE id = ?
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("updating collection %s: %w", info.URL, err)
	}
	return id, nil
}

// PruneCollections removes every collection of the service whose url is not
// in keepURLs and returns how many were removed.
func (s Storage) PruneCollections(ctx context.Context, serviceID int64, keepURLs []string) (int64, error) {
	var n int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) (err error) {
		n, err = pruneCollections(ctx, tx, serviceID, keepURLs)
		return err
	})
	return n, err
}

func pruneCollections(ctx context.Context, tx *sqlx.Tx, serviceID int64, keepURLs []string) (int64, error) {
	var (
		query = `DELETE FROM collections WHERE service_id = ?`
		args  = []any{serviceID}
		err   error
	)
	if len(keepURLs) > 0 {
		query, args, err = sqlx.In(query+` AND url NOT IN (?)`, serviceID, keepURLs)
		if err != nil {
			return 0, err
		}
		query = tx.Rebind(query)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReplaceCollections is the refresh transaction: it creates the service if
// needed, upserts every collection and prunes the ones no longer listed.
// Nothing is applied if any step fails.
func (s Storage) ReplaceCollections(ctx context.Context, account string, typ internal.ServiceType, cols []internal.CollectionInfo) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		id, err = ensureService(ctx, tx, account, typ)
		if err != nil {
			return err
		}

		keep := make([]string, 0, len(cols))
		for _, col := range cols {
			if _, err := upsertCollection(ctx, tx, id, col); err != nil {
				return err
			}
			keep = append(keep, col.URL)
		}
		_, err = pruneCollections(ctx, tx, id, keep)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("replacing collections of %s/%s: %w", account, typ, err)
	}
	return id, nil
}

func (s Storage) Collections(ctx context.Context, serviceID int64) ([]*internal.Collection, error) {
	return s.collections(ctx, `
		SELECT * FROM collections WHERE service_id = ? ORDER BY id
	`, serviceID)
}

// SyncEnabledCollections returns the selected collections of the service in
// insertion order. The result may be empty.
func (s Storage) SyncEnabledCollections(ctx context.Context, serviceID int64) ([]*internal.Collection, error) {
	return s.collections(ctx, `
		SELECT * FROM collections WHERE service_id = ? AND sync_enabled ORDER BY id
	`, serviceID)
}

func (s Storage) Collection(ctx context.Context, id int64) (*internal.Collection, error) {
	var col Collection
	err := s.db.GetContext(ctx, &col, `SELECT * FROM collections WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %d: %w", id, internal.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return col.Convert(), nil
}

func (s Storage) collections(ctx context.Context, query string, args ...any) ([]*internal.Collection, error) {
	var cols []Collection

	err := s.db.SelectContext(ctx, &cols, query, args...)
	if err != nil {
		return nil, err
	}

	res := make([]*internal.Collection, len(cols))
	for i, c := range cols {
		res[i] = c.Convert()
	}
	return res, nil
}

func (s Storage) SetSyncEnabled(ctx context.Context, collectionID int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE collections SET sync_enabled = ? WHERE id = ?
	`, enabled, collectionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("collection %d: %w", collectionID, internal.ErrNotFound)
	}
	return nil
}

// RenameAccount moves every service and every account setting of oldName to
// newName and returns the number of services renamed.
func (s Storage) RenameAccount(ctx context.Context, oldName, newName string) (int64, error) {
	if oldName == newName {
		return 0, nil
	}

	var n int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE services SET account_name = ? WHERE account_name = ?
		`, newName, oldName)
		if err != nil {
			return err
		}
		if n, err = res.RowsAffected(); err != nil {
			return err
		}

		oldPrefix := internal.AccountSettingPrefix(oldName)
		newPrefix := internal.AccountSettingPrefix(newName)
		if err := deleteSettingsWithPrefix(ctx, tx, newPrefix); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE settings SET name = ? || substr(name, ?)
			WHERE substr(name, 1, ?) = ?
		`, newPrefix, utf8.RuneCountInString(oldPrefix)+1, utf8.RuneCountInString(oldPrefix), oldPrefix)
		if err != nil {
			return err
		}
		return moveNotifications(ctx, tx, oldName, newName)
	})
	if err != nil {
		return 0, fmt.Errorf("renaming account %q to %q: %w", oldName, newName, err)
	}
	return n, nil
}

// RemoveService deletes the service and, through the foreign key cascade,
// all its collections.
func (s Storage) RemoveService(ctx context.Context, account string, typ internal.ServiceType) (bool, error) {
	var removed bool
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM services WHERE account_name = ? AND service = ?
		`, account, typ.String())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		removed = n > 0
		return err
	})
	return removed, err
}

// RemoveAccount deletes every service of the account and its settings.
func (s Storage) RemoveAccount(ctx context.Context, account string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM services WHERE account_name = ?`, account)
		if err != nil {
			return err
		}
		if err := deleteSettingsWithPrefix(ctx, tx, internal.AccountSettingPrefix(account)); err != nil {
			return err
		}
		for _, typ := range internal.ServiceTypes {
			name := notify.SettingName(notify.Run{Account: account, Type: typ}.Tag())
			if _, err := tx.ExecContext(ctx, `DELETE FROM settings WHERE name = ?`, name); err != nil {
				return err
			}
		}
		return nil
	})
}

// moveNotifications keeps the failure notices of the account visible under
// its new name.
func moveNotifications(ctx context.Context, tx *sqlx.Tx, oldName, newName string) error {
	for _, typ := range internal.ServiceTypes {
		from := notify.SettingName(notify.Run{Account: oldName, Type: typ}.Tag())
		to := notify.SettingName(notify.Run{Account: newName, Type: typ}.Tag())

		if _, err := tx.ExecContext(ctx, `DELETE FROM settings WHERE name = ?`, to); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE settings SET name = ? WHERE name = ?`, to, from)
		if err != nil {
			return err
		}
	}
	return nil
}
