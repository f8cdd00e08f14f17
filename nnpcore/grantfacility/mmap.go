//go:build linux

package grantfacility

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/wnagchenghku/nnpshare/nnpcore"
	"github.com/wnagchenghku/nnpshare/nnpcore/pages"
)

type grantEntry struct {
	targetDomain int
	offset       int64
	length       int
}

// MMap is a GrantFacility backed by real mmap'd shared memory: GrantRead
// resolves the granted page back to its (offset, length) in the backing
// file via the paired MMapAllocator, and MapBatch opens a second,
// independent, read-only mapping of that same file descriptor. The
// operating system, not application logic, enforces that the mapped memory
// cannot be written through the returned slice.
type MMap struct {
	allocator *pages.MMapAllocator

	mu      sync.Mutex
	nextRef nnpcore.GrantRef
	grants  map[nnpcore.GrantRef]grantEntry
}

// NewMMap returns a grant facility over the pages allocator's backing file.
// The allocator and facility must be used together: every page ever passed
// to GrantRead must have come from allocator.AllocPages.
func NewMMap(allocator *pages.MMapAllocator) *MMap {
	return &MMap{
		allocator: allocator,
		grants:    map[nnpcore.GrantRef]grantEntry{},
	}
}

func (f *MMap) GrantRead(targetDomain int, page []byte) (nnpcore.GrantRef, error) {
	offset, length, ok := f.allocator.OffsetOf(page)
	if !ok {
		return 0, fmt.Errorf("grantfacility: page was not allocated by this facility's paired allocator")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextRef++
	ref := f.nextRef
	f.grants[ref] = grantEntry{targetDomain: targetDomain, offset: offset, length: length}
	return ref, nil
}

func (f *MMap) Revoke(ref nnpcore.GrantRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.grants[ref]; !ok {
		return fmt.Errorf("grantfacility: revoke of unknown or already-revoked ref %d", ref)
	}
	delete(f.grants, ref)
	return nil
}

// MapBatch requires refs to name a contiguous run of pages in publication
// order, which the backend session manager always grants them in; a
// non-contiguous batch is treated the same as a hardware map failure.
func (f *MMap) MapBatch(fromDomain int, refs []nnpcore.GrantRef) ([]byte, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	f.mu.Lock()
	entries := make([]grantEntry, len(refs))
	for i, ref := range refs {
		e, ok := f.grants[ref]
		if !ok {
			f.mu.Unlock()
			return nil, fmt.Errorf("%w: unknown ref %d", nnpcore.ErrMapFailed, ref)
		}
		entries[i] = e
	}
	f.mu.Unlock()

	for i := 1; i < len(entries); i++ {
		if entries[i].offset != entries[i-1].offset+int64(entries[i-1].length) {
			return nil, fmt.Errorf("%w: refs are not contiguous in the backing file", nnpcore.ErrMapFailed)
		}
	}

	total := 0
	for _, e := range entries {
		total += e.length
	}

	data, err := unix.Mmap(int(f.allocator.File().Fd()), entries[0].offset, total, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap: %v", nnpcore.ErrMapFailed, err)
	}

	return data, nil
}

func (f *MMap) Unmap(mapped []byte) error {
	if len(mapped) == 0 {
		return nil
	}
	return unix.Munmap(mapped)
}
