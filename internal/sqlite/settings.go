package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"github.com/guilherme-santos/davsync/internal"
)

const (
	keySyncEnabled     = "sync_enabled"
	keyAllowedNetworks = "allowed_networks"
	keyCredentials     = "credentials"
)

func (s Storage) Setting(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s Storage) SetSetting(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value;
	`, name, value)
	return err
}

func (s Storage) DeleteSetting(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE name = ?`, name)
	return err
}

func deleteSettingsWithPrefix(ctx context.Context, tx *sqlx.Tx, prefix string) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM settings WHERE substr(name, 1, ?) = ?
	`, utf8.RuneCountInString(prefix), prefix)
	return err
}

// AccountSettings returns the defaults for values never saved.
func (s Storage) AccountSettings(ctx context.Context, account string) (*internal.AccountSettings, error) {
	settings := internal.DefaultAccountSettings()

	v, ok, err := s.Setting(ctx, internal.SettingKey(account, keySyncEnabled))
	if err != nil {
		return nil, err
	}
	if ok {
		settings.SyncEnabled, _ = strconv.ParseBool(v)
	}

	v, ok, err = s.Setting(ctx, internal.SettingKey(account, keyAllowedNetworks))
	if err != nil {
		return nil, err
	}
	if ok && v != "" {
		for _, n := range strings.Split(v, ",") {
			if n = strings.TrimSpace(n); n != "" {
				settings.AllowedNetworks = append(settings.AllowedNetworks, n)
			}
		}
	}
	return &settings, nil
}

func (s Storage) SaveAccountSettings(ctx context.Context, account string, settings internal.AccountSettings) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		values := map[string]string{
			keySyncEnabled:     strconv.FormatBool(settings.SyncEnabled),
			keyAllowedNetworks: strings.Join(settings.AllowedNetworks, ","),
		}
		for key, value := range values {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO settings (name, value) VALUES (?, ?)
				ON CONFLICT(name) DO UPDATE SET value = excluded.value;
			`, internal.SettingKey(account, key), value)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Credentials returns the stored secret of the account (an OAuth token or a
// password, depending on the platform), or internal.ErrNotFound.
func (s Storage) Credentials(ctx context.Context, account string) (string, error) {
	v, ok, err := s.Setting(ctx, internal.SettingKey(account, keyCredentials))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", internal.ErrNotFound
	}
	return v, nil
}

func (s Storage) SetCredentials(ctx context.Context, account, secret string) error {
	return s.SetSetting(ctx, internal.SettingKey(account, keyCredentials), secret)
}
