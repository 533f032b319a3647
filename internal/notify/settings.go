package notify

import (
	"context"
	"encoding/json"

	"github.com/guilherme-santos/davsync/internal/logger"
)

const settingPrefix = "notification."

type SettingsStore interface {
	Setting(_ context.Context, name string) (string, bool, error)
	SetSetting(_ context.Context, name, value string) error
	DeleteSetting(_ context.Context, name string) error
}

// SettingsNotifier logs notifications and keeps the last one of every tag
// in the settings table, where the debug view reads it from.
type SettingsNotifier struct {
	store  SettingsStore
	logger logger.Logger
}

func NewSettingsNotifier(store SettingsStore, log logger.Logger) *SettingsNotifier {
	return &SettingsNotifier{
		store:  store,
		logger: log,
	}
}

func (n *SettingsNotifier) Notify(ctx context.Context, tag string, notif *Notification) error {
	n.logger.Warn(notif.Title,
		logger.String("tag", tag),
		logger.String("message", notif.Message),
		logger.String("cause", notif.Details.Cause))

	v, err := json.Marshal(notif)
	if err != nil {
		return err
	}
	return n.store.SetSetting(ctx, SettingName(tag), string(v))
}

func (n *SettingsNotifier) Cancel(ctx context.Context, tag string) error {
	return n.store.DeleteSetting(ctx, SettingName(tag))
}

// SettingName is the settings name the notification of tag is kept under.
func SettingName(tag string) string {
	return settingPrefix + tag
}

// Last returns the notification currently shown for tag, if any.
func Last(ctx context.Context, store SettingsStore, tag string) (*Notification, bool, error) {
	v, ok, err := store.Setting(ctx, SettingName(tag))
	if err != nil || !ok {
		return nil, false, err
	}
	var notif Notification
	if err := json.Unmarshal([]byte(v), &notif); err != nil {
		return nil, false, err
	}
	return &notif, true, nil
}
