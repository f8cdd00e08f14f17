package nnpcore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeFacility is a minimal in-memory GrantFacility double, independent of
// the nnpcore/grantfacility package, so nnpcore's own tests don't need to
// import a sibling package.
type fakeFacility struct {
	nextRef GrantRef
	granted map[GrantRef][]byte
	revoked map[GrantRef]bool
}

func newFakeFacility() *fakeFacility {
	return &fakeFacility{
		granted: map[GrantRef][]byte{},
		revoked: map[GrantRef]bool{},
	}
}

func (f *fakeFacility) GrantRead(targetDomain int, page []byte) (GrantRef, error) {
	f.nextRef++
	f.granted[f.nextRef] = page
	return f.nextRef, nil
}

func (f *fakeFacility) Revoke(ref GrantRef) error {
	f.revoked[ref] = true
	return nil
}

func (f *fakeFacility) MapBatch(fromDomain int, refs []GrantRef) ([]byte, error) {
	out := make([]byte, 0, len(refs)*PageSize)
	for _, ref := range refs {
		page, ok := f.granted[ref]
		if !ok {
			return nil, nil
		}
		out = append(out, page...)
	}
	return out, nil
}

func (f *fakeFacility) Unmap(mapped []byte) error { return nil }

func TestEncodeDecodeGrantDirectoryRoundTrips(t *testing.T) {
	facility := newFakeFacility()

	numGrants := 5
	grants := make([]GrantRef, numGrants)
	for i := range grants {
		grants[i] = GrantRef(1000 + i)
	}

	want := dirPagesFor(numGrants)
	require.Equal(t, 1, want)

	dirPages := make([][]byte, want)
	for i := range dirPages {
		dirPages[i] = make([]byte, PageSize)
	}

	directoryRefs, err := EncodeGrantDirectory(facility, 9, grants, dirPages)
	require.NoError(t, err)
	require.Len(t, directoryRefs, want)

	got, err := DecodeGrantDirectory(facility, 7, directoryRefs, numGrants)
	require.NoError(t, err)
	require.Equal(t, grants, got)
}

func TestDecodeGrantDirectoryProtocolDesync(t *testing.T) {
	facility := newFakeFacility()

	dirPages := [][]byte{make([]byte, PageSize)}
	directoryRefs, err := EncodeGrantDirectory(facility, 9, []GrantRef{1}, dirPages)
	require.NoError(t, err)

	_, err = DecodeGrantDirectory(facility, 7, directoryRefs, perDirPageRefs+1)
	require.ErrorIs(t, err, ErrProtocolDesync)
}

func TestEncodeGrantDirectoryPanicsOnMismatchedDirPageCount(t *testing.T) {
	facility := newFakeFacility()
	grants := make([]GrantRef, perDirPageRefs+1)

	require.Panics(t, func() {
		_, _ = EncodeGrantDirectory(facility, 9, grants, [][]byte{make([]byte, PageSize)})
	})
}
