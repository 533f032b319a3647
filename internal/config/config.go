package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	DBFile       string // path to the sqlite metadata database
	AccountsFile string // path to the accounts.yaml file

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)
	LogFile   string // optional, rotated JSON log file

	SyncInterval time.Duration // daemon interval between automatic syncs (default: 15m)
	RetryDelay   time.Duration // retry delay when the server suggests none (default: 60s)
	HTTPTimeout  time.Duration // timeout of a single DAV request (default: 30s)

	GoogleCredentialsFile string // OAuth client credentials, empty = google disabled
}

func Load() *Config {
	cfg := &Config{
		DBFile:       getenv("DAVSYNC_DB_FILE", defaultPath("services.db")),
		AccountsFile: getenv("DAVSYNC_ACCOUNTS_FILE", defaultPath("accounts.yaml")),

		LogLevel:  getenv("DAVSYNC_LOG_LEVEL", "info"),
		PrettyLog: mustBool("DAVSYNC_PRETTY_LOG", true),
		LogFile:   getenv("DAVSYNC_LOG_FILE", ""),

		SyncInterval: mustDuration("DAVSYNC_SYNC_INTERVAL", 15*time.Minute),
		RetryDelay:   mustDuration("DAVSYNC_RETRY_DELAY", 60*time.Second),
		HTTPTimeout:  mustDuration("DAVSYNC_HTTP_TIMEOUT", 30*time.Second),

		GoogleCredentialsFile: getenv("DAVSYNC_GOOGLE_CREDENTIALS_FILE", ""),
	}

	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", *cfg)
	}
	return cfg
}

// defaultPath places name under the user config directory, falling back to
// the working directory.
func defaultPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, "davsync", name)
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
