package provider_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guilherme-santos/davsync/internal"
	"github.com/guilherme-santos/davsync/provider"
)

type stubProvider struct{ name string }

func (stubProvider) ServiceTypes() []internal.ServiceType { return nil }

func (stubProvider) Refresh(context.Context, internal.Store, internal.Account, internal.ServiceType) error {
	return nil
}

func (stubProvider) SyncCollection(context.Context, internal.Account, *internal.Collection, *internal.RunContext) (*internal.SyncStats, error) {
	return &internal.SyncStats{}, nil
}

func TestMux(t *testing.T) {
	mux := provider.NewMux()

	_, err := mux.Get("dav")
	require.EqualError(t, err, `provider "dav" is not implemented`)

	mux.Register("google", stubProvider{name: "google"})
	mux.Register("dav", stubProvider{name: "dav"})

	p, err := mux.Get("dav")
	require.NoError(t, err)
	assert.Equal(t, stubProvider{name: "dav"}, p)

	mux.Register("dav", stubProvider{name: "dav2"})
	p, err = mux.Get("dav")
	require.NoError(t, err)
	assert.Equal(t, stubProvider{name: "dav2"}, p)

	assert.Equal(t, []string{"dav", "google"}, mux.Platforms())
}
