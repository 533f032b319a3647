package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/guilherme-santos/davsync/internal"
)

// Accounts is the content of the accounts file.
type Accounts struct {
	Accounts []internal.Account `yaml:"accounts"`
}

// LoadAccounts reads the accounts file. A missing file is an empty list.
func LoadAccounts(filename string) (*Accounts, error) {
	b, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return &Accounts{}, nil
	}
	if err != nil {
		return nil, err
	}

	var accs Accounts
	if err := yaml.Unmarshal(b, &accs); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}
	if err := accs.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return &accs, nil
}

func (a *Accounts) validate() error {
	seen := make(map[string]bool, len(a.Accounts))
	for _, acc := range a.Accounts {
		if acc.Name == "" {
			return errors.New("account without name")
		}
		if acc.Platform == "" {
			return fmt.Errorf("account %q has no platform", acc.Name)
		}
		if seen[acc.Name] {
			return fmt.Errorf("account %q is defined twice", acc.Name)
		}
		seen[acc.Name] = true
	}
	return nil
}

func (a *Accounts) Get(name string) (internal.Account, bool) {
	i := a.index(name)
	if i < 0 {
		return internal.Account{}, false
	}
	return a.Accounts[i], true
}

// Put adds the account or replaces the one with the same name.
func (a *Accounts) Put(acc internal.Account) {
	if i := a.index(acc.Name); i >= 0 {
		a.Accounts[i] = acc
		return
	}
	a.Accounts = append(a.Accounts, acc)
}

func (a *Accounts) Rename(oldName, newName string) error {
	i := a.index(oldName)
	if i < 0 {
		return fmt.Errorf("account %q: %w", oldName, internal.ErrNotFound)
	}
	if a.index(newName) >= 0 {
		return fmt.Errorf("account %q already exists", newName)
	}
	a.Accounts[i].Name = newName
	return nil
}

func (a *Accounts) Remove(name string) bool {
	i := a.index(name)
	if i < 0 {
		return false
	}
	a.Accounts = slices.Delete(a.Accounts, i, i+1)
	return true
}

func (a *Accounts) index(name string) int {
	return slices.IndexFunc(a.Accounts, func(acc internal.Account) bool {
		return acc.Name == name
	})
}

// Save writes the accounts file atomically.
func (a *Accounts) Save(filename string) error {
	b, err := yaml.Marshal(a)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o700); err != nil {
		return err
	}

	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, filename)
}
