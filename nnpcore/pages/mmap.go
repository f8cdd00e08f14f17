//go:build linux

package pages

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/wnagchenghku/nnpshare/nnpcore"
)

// region remembers where one AllocPages call's returned slice lives within
// the backing file, so a GrantFacility sharing this allocator can recover
// the (offset, length) of any page it was handed without nnpcore.PageAllocator
// having to say anything about offsets in its interface.
type region struct {
	base   uintptr
	length int
	offset int64
}

// MMapAllocator is a PageAllocator backed by a memory-mapped, unlinked temp
// file. Pages it returns are MAP_SHARED, so a second, independent mapping of
// the same file descriptor (see nnpcore/grantfacility.MMap) observes
// the same bytes — the Go-native equivalent of two domains sharing machine
// frames through the hypervisor's grant table.
type MMapAllocator struct {
	file *os.File

	mu      sync.Mutex
	size    int64
	regions []region
}

// NewMMapAllocator creates a backing file (unlinked immediately, so it
// vanishes from the filesystem namespace once every mapping referencing it
// closes) in dir and returns an allocator over it.
func NewMMapAllocator(dir string) (*MMapAllocator, error) {
	f, err := os.CreateTemp(dir, "nnpshare-weights-*")
	if err != nil {
		return nil, fmt.Errorf("pages: creating backing file: %w", err)
	}
	if err := os.Remove(f.Name()); err != nil {
		f.Close()
		return nil, fmt.Errorf("pages: unlinking backing file: %w", err)
	}
	return &MMapAllocator{file: f}, nil
}

// Close releases the backing file descriptor. Any still-mapped regions
// remain valid until separately unmapped.
func (a *MMapAllocator) Close() error {
	return a.file.Close()
}

// File returns the backing file, so a GrantFacility can open a second,
// independent mapping over the same descriptor.
func (a *MMapAllocator) File() *os.File {
	return a.file
}

// AllocPages grows the backing file by 2^order pages and maps that new
// range MAP_SHARED, read-write, returning the mapped bytes.
func (a *MMapAllocator) AllocPages(order int) ([]byte, error) {
	if order < 0 {
		return nil, fmt.Errorf("pages: negative order %d", order)
	}

	n := (1 << uint(order)) * nnpcore.PageSize

	a.mu.Lock()
	defer a.mu.Unlock()

	offset := a.size
	if err := a.file.Truncate(offset + int64(n)); err != nil {
		return nil, fmt.Errorf("pages: growing backing file: %w", err)
	}

	data, err := unix.Mmap(int(a.file.Fd()), offset, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("pages: mmap: %w", err)
	}

	a.size = offset + int64(n)
	a.regions = append(a.regions, region{
		base:   uintptr(unsafe.Pointer(&data[0])),
		length: n,
		offset: offset,
	})

	return data, nil
}

// OffsetOf recovers the backing-file (offset, length) of a page slice this
// allocator previously returned from AllocPages, or a sub-slice of one. It
// returns ok=false for any slice this allocator did not hand out.
func (a *MMapAllocator) OffsetOf(page []byte) (offset int64, length int, ok bool) {
	if len(page) == 0 {
		return 0, 0, false
	}

	base := uintptr(unsafe.Pointer(&page[0]))

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, r := range a.regions {
		if base >= r.base && base+uintptr(len(page)) <= r.base+uintptr(r.length) {
			return r.offset + int64(base-r.base), len(page), true
		}
	}
	return 0, 0, false
}
