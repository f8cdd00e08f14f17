package nnpcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRegistryPutGetRemove(t *testing.T) {
	r := NewSessionRegistry()
	assert.Equal(t, 0, r.Len())

	r.Put(&Session{FrontendDomainID: 1, Model: "alexnet", DataGrants: []GrantRef{10, 11}})
	r.Put(&Session{FrontendDomainID: 2, Model: "resnet18", DataGrants: []GrantRef{20}})
	assert.Equal(t, 2, r.Len())

	s, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, "alexnet", s.Model)

	_, ok = r.Get(99)
	assert.False(t, ok)

	removed, ok := r.Remove(1)
	require.True(t, ok)
	assert.Equal(t, "alexnet", removed.Model)
	assert.Equal(t, 1, r.Len())

	_, ok = r.Remove(1)
	assert.False(t, ok)
}

func TestSessionRegistryPutReplacesExisting(t *testing.T) {
	r := NewSessionRegistry()
	r.Put(&Session{FrontendDomainID: 1, Model: "alexnet"})
	r.Put(&Session{FrontendDomainID: 1, Model: "vgg11"})

	assert.Equal(t, 1, r.Len())
	s, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, "vgg11", s.Model)
}

func TestSessionRegistryAllPreservesArrivalOrder(t *testing.T) {
	r := NewSessionRegistry()
	r.Put(&Session{FrontendDomainID: 3})
	r.Put(&Session{FrontendDomainID: 1})
	r.Put(&Session{FrontendDomainID: 2})

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, 3, all[0].FrontendDomainID)
	assert.Equal(t, 1, all[1].FrontendDomainID)
	assert.Equal(t, 2, all[2].FrontendDomainID)
}

func TestSessionRegistryOutstandingGrants(t *testing.T) {
	r := NewSessionRegistry()
	r.Put(&Session{FrontendDomainID: 1, DataGrants: []GrantRef{1, 2}, DirectoryGrants: []GrantRef{3}})
	r.Put(&Session{FrontendDomainID: 2, DataGrants: []GrantRef{4}})

	grants := r.OutstandingGrants()
	assert.ElementsMatch(t, []GrantRef{1, 2, 3, 4}, grants)

	r.Remove(1)
	grants = r.OutstandingGrants()
	assert.ElementsMatch(t, []GrantRef{4}, grants)
}
