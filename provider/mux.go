package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/guilherme-santos/davsync/internal"
)

type Mux struct {
	mu        sync.RWMutex
	providers map[string]internal.Provider
}

func NewMux() *Mux {
	return &Mux{
		providers: make(map[string]internal.Provider),
	}
}

func (m *Mux) Get(platform string) (internal.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.providers[platform]
	if !ok {
		return nil, fmt.Errorf("provider %q is not implemented", platform)
	}
	return p, nil
}

func (m *Mux) Register(platform string, p internal.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.providers[platform] = p
}

// Platforms returns the registered platform names, sorted.
func (m *Mux) Platforms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
