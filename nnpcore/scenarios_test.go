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

type harness struct {
	store    *MemStore
	grants   *grantfacility.InMemory
	alloc    *pages.InMemory
	registry *SessionRegistry
	backend  *Backend
	ctx      context.Context
	cancel   context.CancelFunc
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    NewMemStore(),
		grants:   grantfacility.NewInMemory(),
		alloc:    pages.NewInMemory(),
		registry: NewSessionRegistry(),
	}
	metrics := NewMetrics(prometheus.NewRegistry())
	h.backend = NewBackend(7, h.store, h.grants, h.alloc, NewBackendModelTable(), h.registry, metrics, nil, zerolog.Nop())
	require.NoError(t, h.backend.Announce())

	h.ctx, h.cancel = context.WithCancel(context.Background())
	go h.backend.Run(h.ctx)
	t.Cleanup(h.cancel)
	return h
}

func (h *harness) newFrontend(feID int) *Frontend {
	return NewFrontend(feID, h.store, h.grants, NewFrontendModelTable(), nil, zerolog.Nop())
}

// Scenario 1: single frontend, squeezenet.
func TestScenarioSingleFrontendSqueezenet(t *testing.T) {
	h := newHarness(t)

	v, err := h.store.Read(pathBackend)
	require.NoError(t, err)
	assert.Equal(t, "7", v)

	fe := h.newFrontend(9)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, fe.Init(ctx, "squeezenet1_0"))

	state, err := h.store.Read(StateKey(9))
	require.NoError(t, err)
	assert.Equal(t, "1", state)

	model, err := NewFrontendModelTable().Lookup("squeezenet1_0")
	require.NoError(t, err)

	_, first, ok := fe.NextParam()
	require.True(t, ok)
	assert.Len(t, first, model.Tensors[0].Count)

	_, second, ok := fe.NextParam()
	require.True(t, ok)
	assert.Len(t, second, model.Tensors[1].Count)
}

// Scenario 2: two sequential frontends requesting the same model.
func TestScenarioTwoSequentialFrontendsSameModel(t *testing.T) {
	h := newHarness(t)

	fe9 := h.newFrontend(9)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, fe9.Init(ctx, "squeezenet1_0"))
	session9, ok := h.registry.Get(9)
	require.True(t, ok)

	require.NoError(t, fe9.Shutdown())
	require.Eventually(t, func() bool { _, ok := h.registry.Get(9); return !ok }, time.Second, 5*time.Millisecond)

	fe12 := h.newFrontend(12)
	require.NoError(t, fe12.Init(ctx, "squeezenet1_0"))
	session12, ok := h.registry.Get(12)
	require.True(t, ok)

	assert.Equal(t, 1, len(h.backend.weights)) // allocated exactly once
	for _, ref := range session12.DataGrants {
		assert.NotContains(t, session9.DataGrants, ref)
	}
}

// Scenario 3: teardown revocation.
func TestScenarioTeardownRevocation(t *testing.T) {
	h := newHarness(t)

	fe := h.newFrontend(9)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, fe.Init(ctx, "squeezenet1_0"))
	session, ok := h.registry.Get(9)
	require.True(t, ok)
	allGrants := append(append([]GrantRef{}, session.DataGrants...), session.DirectoryGrants...)

	require.NoError(t, fe.Shutdown())
	require.Eventually(t, func() bool { _, ok := h.registry.Get(9); return !ok }, time.Second, 5*time.Millisecond)

	outstanding := h.grants.Outstanding()
	for _, ref := range allGrants {
		assert.False(t, outstanding[ref], "grant %d should have been revoked", ref)
	}
}

// Scenario 4: unknown model never publishes.
func TestScenarioUnknownModelNeverPublishes(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.store.Write(FrontendKey(9), "lenet"))

	require.Never(t, func() bool {
		v, err := h.store.Read(StateKey(9))
		return err == nil && v == "1"
	}, 200*time.Millisecond, 10*time.Millisecond)

	_, err := h.store.Read(GrantRefRefKey(9))
	assert.Error(t, err)
}

// Scenario 5: smallest model needs exactly one directory page.
func TestScenarioSmallestModelSingleDirectoryPage(t *testing.T) {
	h := newHarness(t)

	fe := h.newFrontend(9)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, fe.Init(ctx, "squeezenet1_0"))

	session, ok := h.registry.Get(9)
	require.True(t, ok)
	assert.Equal(t, 1, session.DirPages)

	raw, err := h.store.Read(GrantRefRefKey(9))
	require.NoError(t, err)
	refs, err := ParseGrantRefRef(raw)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

// Scenario 6: double close is a no-op the second time.
func TestScenarioDoubleCloseIsNoop(t *testing.T) {
	h := newHarness(t)

	fe := h.newFrontend(9)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, fe.Init(ctx, "squeezenet1_0"))

	require.NoError(t, h.store.Write(FrontendKey(9), closeToken))
	require.Eventually(t, func() bool { _, ok := h.registry.Get(9); return !ok }, time.Second, 5*time.Millisecond)

	before := len(h.grants.Outstanding())
	require.NoError(t, h.store.Write(FrontendKey(9), closeToken))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, len(h.grants.Outstanding()))
}

// P1: frontend and backend descriptor counts agree for every model.
func TestPropertyP1DescriptorCountsAgree(t *testing.T) {
	backendTable := NewBackendModelTable()
	frontendTable := NewFrontendModelTable()

	for name, bm := range backendTable {
		fm, err := frontendTable.Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, bm.TotalBytes()/4, fm.TotalElements())
	}
}

// P2: published grant-ref-ref token count equals the expected dir_pages.
func TestPropertyP2GrantRefRefTokenCount(t *testing.T) {
	h := newHarness(t)
	fe := h.newFrontend(9)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, fe.Init(ctx, "vgg11"))

	session, ok := h.registry.Get(9)
	require.True(t, ok)

	expectedDirPages := dirPagesFor(session.TotalPages)
	assert.Equal(t, expectedDirPages, session.DirPages)

	raw, err := h.store.Read(GrantRefRefKey(9))
	require.NoError(t, err)
	refs, err := ParseGrantRefRef(raw)
	require.NoError(t, err)
	assert.Len(t, refs, session.DirPages)
}

// P3: outstanding grants always equal the union of active sessions' grants.
func TestPropertyP3OutstandingGrantsMatchActiveSessions(t *testing.T) {
	h := newHarness(t)

	fe9 := h.newFrontend(9)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, fe9.Init(ctx, "alexnet"))

	fe12 := h.newFrontend(12)
	require.NoError(t, fe12.Init(ctx, "resnet18"))

	expected := map[GrantRef]bool{}
	for _, s := range h.registry.All() {
		for _, r := range s.DataGrants {
			expected[r] = true
		}
		for _, r := range s.DirectoryGrants {
			expected[r] = true
		}
	}
	assert.Equal(t, expected, h.grants.Outstanding())

	require.NoError(t, fe9.Shutdown())
	require.Eventually(t, func() bool { _, ok := h.registry.Get(9); return !ok }, time.Second, 5*time.Millisecond)

	expected = map[GrantRef]bool{}
	for _, s := range h.registry.All() {
		for _, r := range s.DataGrants {
			expected[r] = true
		}
		for _, r := range s.DirectoryGrants {
			expected[r] = true
		}
	}
	assert.Equal(t, expected, h.grants.Outstanding())
}

// P4: CLOSE_FRONTEND is idempotent (covered again directly on the backend).
func TestPropertyP4CloseFrontendIdempotent(t *testing.T) {
	h := newHarness(t)
	h.backend.closeSession(42) // never opened
	h.backend.closeSession(42) // still a no-op
}

// P5: NextParam returns tensors in order with the right element counts.
func TestPropertyP5ResolveParamSequence(t *testing.T) {
	h := newHarness(t)
	fe := h.newFrontend(9)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, fe.Init(ctx, "alexnet"))

	model, err := NewFrontendModelTable().Lookup("alexnet")
	require.NoError(t, err)

	for i := range model.Tensors {
		tensor, values, ok := fe.NextParam()
		require.True(t, ok)
		assert.Equal(t, model.Tensors[i].Name, tensor.Name)
		assert.Len(t, values, model.Tensors[i].Count)
	}
	_, _, ok := fe.NextParam()
	assert.False(t, ok)
}

// P6 is exercised directly in mathutil_test.go.
