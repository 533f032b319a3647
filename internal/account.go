package internal

import "strings"

type Account struct {
	Name     string `yaml:"name"`
	Platform string `yaml:"platform"`
	URL      string `yaml:"url,omitempty"`
	Username string `yaml:"username,omitempty"`
}

func (a Account) ID() string {
	return a.Platform + "/" + a.Name
}

func (a Account) String() string {
	return a.ID()
}

// AccountSettings are the per-account preconditions consulted before an
// automatic sync.
type AccountSettings struct {
	SyncEnabled     bool
	AllowedNetworks []string
}

func DefaultAccountSettings() AccountSettings {
	return AccountSettings{SyncEnabled: true}
}

// SettingKey builds the settings name of a per-account value. Every key of
// an account shares the "account.<name>." prefix so a rename or removal can
// move them together. The name is escaped so it never contains a dot, which
// keeps one account's prefix from matching another's.
func SettingKey(account string, parts ...string) string {
	key := AccountSettingPrefix(account)
	for i, p := range parts {
		if i > 0 {
			key += "."
		}
		key += p
	}
	return key
}

func AccountSettingPrefix(account string) string {
	return "account." + accountKeyEscaper.Replace(account) + "."
}

var accountKeyEscaper = strings.NewReplacer("%", "%25", ".", "%2E")
