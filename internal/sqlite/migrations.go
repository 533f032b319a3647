package sqlite

import "context"

func (s Storage) RunMigrations(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS settings (
		name TEXT NOT NULL,
		value TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS settings_name ON settings (name)`,
	`CREATE TABLE IF NOT EXISTS services (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_name TEXT NOT NULL,
		service TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS services_account ON services (account_name, service)`,
	`CREATE TABLE IF NOT EXISTS collections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		service_id INTEGER NOT NULL REFERENCES services (id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		read_only INTEGER NOT NULL DEFAULT 0,
		display_name TEXT NULL,
		description TEXT NULL,
		color INTEGER NULL,
		time_zone TEXT NULL,
		supports_events INTEGER NULL,
		supports_tasks INTEGER NULL,
		sync_enabled INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS collections_service_url ON collections (service_id, url)`,
}
