//go:build linux

package grantfacility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnagchenghku/nnpshare/nnpcore"
	"github.com/wnagchenghku/nnpshare/nnpcore/pages"
)

func TestMMapGrantRevokeMapBatch(t *testing.T) {
	alloc, err := pages.NewMMapAllocator(t.TempDir())
	require.NoError(t, err)
	defer alloc.Close()

	facility := NewMMap(alloc)

	data, err := alloc.AllocPages(1) // 2 pages
	require.NoError(t, err)
	data[0] = 0x42
	data[nnpcore.PageSize] = 0x43

	ref0, err := facility.GrantRead(9, data[:nnpcore.PageSize])
	require.NoError(t, err)
	ref1, err := facility.GrantRead(9, data[nnpcore.PageSize:])
	require.NoError(t, err)

	mapped, err := facility.MapBatch(7, []nnpcore.GrantRef{ref0, ref1})
	require.NoError(t, err)
	defer facility.Unmap(mapped)

	require.Len(t, mapped, 2*nnpcore.PageSize)
	assert.Equal(t, byte(0x42), mapped[0])
	assert.Equal(t, byte(0x43), mapped[nnpcore.PageSize])

	require.NoError(t, facility.Revoke(ref0))
	require.NoError(t, facility.Revoke(ref1))
	assert.Error(t, facility.Revoke(ref0))
}

func TestMMapGrantReadRejectsForeignPage(t *testing.T) {
	alloc, err := pages.NewMMapAllocator(t.TempDir())
	require.NoError(t, err)
	defer alloc.Close()

	facility := NewMMap(alloc)

	foreign := make([]byte, nnpcore.PageSize)
	_, err = facility.GrantRead(9, foreign)
	assert.Error(t, err)
}
