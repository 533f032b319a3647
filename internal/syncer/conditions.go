package syncer

import (
	"context"
	"net"
	"slices"

	"github.com/guilherme-santos/davsync/internal"
)

// NetworkConditions allows automatic syncs when the account has sync enabled
// and, if the account restricts networks, one of those interfaces is up.
type NetworkConditions struct {
	interfaces func() ([]net.Interface, error)
}

func NewNetworkConditions() *NetworkConditions {
	return &NetworkConditions{interfaces: net.Interfaces}
}

func (c *NetworkConditions) Check(_ context.Context, settings *internal.AccountSettings) bool {
	if settings == nil || !settings.SyncEnabled {
		return false
	}
	if len(settings.AllowedNetworks) == 0 {
		return true
	}

	ifaces, err := c.interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if slices.Contains(settings.AllowedNetworks, iface.Name) {
			return true
		}
	}
	return false
}
