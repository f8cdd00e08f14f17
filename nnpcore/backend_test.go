package nnpcore

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnagchenghku/nnpshare/nnpcore/grantfacility"
	"github.com/wnagchenghku/nnpshare/nnpcore/pages"
)

func newTestBackend(t *testing.T) (*Backend, Store, *grantfacility.InMemory, *SessionRegistry) {
	t.Helper()
	store := NewMemStore()
	grants := grantfacility.NewInMemory()
	alloc := pages.NewInMemory()
	registry := NewSessionRegistry()
	metrics := NewMetrics(prometheus.NewRegistry())

	b := NewBackend(0, store, grants, alloc, NewBackendModelTable(), registry, metrics, nil, zerolog.Nop())
	require.NoError(t, b.Announce())
	return b, store, grants, registry
}

func TestBackendPublishCreatesSessionAndStoreEntries(t *testing.T) {
	b, store, _, registry := newTestBackend(t)

	require.NoError(t, b.publish(3, "alexnet"))

	state, err := store.Read(StateKey(3))
	require.NoError(t, err)
	assert.Equal(t, "1", state)

	raw, err := store.Read(GrantRefRefKey(3))
	require.NoError(t, err)
	refs, err := ParseGrantRefRef(raw)
	require.NoError(t, err)
	assert.NotEmpty(t, refs)

	session, ok := registry.Get(3)
	require.True(t, ok)
	assert.Equal(t, "alexnet", session.Model)
	assert.Equal(t, SessionReady, session.State)
}

func TestBackendPublishUnknownModel(t *testing.T) {
	b, _, _, _ := newTestBackend(t)
	err := b.publish(3, "not-a-real-model")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestBackendCloseSessionRevokesGrants(t *testing.T) {
	b, _, grants, registry := newTestBackend(t)

	require.NoError(t, b.publish(3, "alexnet"))
	assert.NotEmpty(t, grants.Outstanding())

	b.closeSession(3)

	assert.Empty(t, grants.Outstanding())
	_, ok := registry.Get(3)
	assert.False(t, ok)
}

func TestBackendCloseUnknownSessionIsNoop(t *testing.T) {
	b, _, _, _ := newTestBackend(t)
	b.closeSession(999) // must not panic
}

func TestBackendRunHandlesEventsUntilCancelled(t *testing.T) {
	b, store, _, registry := newTestBackend(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.NoError(t, store.Write(FrontendKey(5), "resnet18"))

	require.Eventually(t, func() bool {
		_, ok := registry.Get(5)
		return ok
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, store.Write(FrontendKey(5), "close"))
	require.Eventually(t, func() bool {
		_, ok := registry.Get(5)
		return !ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
