// Package grantfacility implements nnpcore.GrantFacility: the collaborator
// a real hypervisor would provide for one domain to authorize another to
// map its pages read-only.
package grantfacility

import (
	"fmt"
	"sync"

	"github.com/wnagchenghku/nnpshare/nnpcore"
)

// InMemory is a GrantFacility double for same-process use: tests and the
// in-memory store backend exercise the full protocol without any real
// memory mapping. Grant "access" is just a map entry holding the page
// slice; MapBatch copies the referenced pages into one contiguous buffer,
// which is observationally equivalent to a real read-only mapping for
// everything the protocol does with the result (it's only ever read).
type InMemory struct {
	mu      sync.Mutex
	nextRef nnpcore.GrantRef
	pages   map[nnpcore.GrantRef][]byte
}

// NewInMemory returns a ready-to-use InMemory grant facility.
func NewInMemory() *InMemory {
	return &InMemory{pages: map[nnpcore.GrantRef][]byte{}}
}

func (f *InMemory) GrantRead(targetDomain int, page []byte) (nnpcore.GrantRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextRef++
	ref := f.nextRef
	f.pages[ref] = page
	return ref, nil
}

func (f *InMemory) Revoke(ref nnpcore.GrantRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.pages[ref]; !ok {
		return fmt.Errorf("grantfacility: revoke of unknown or already-revoked ref %d", ref)
	}
	delete(f.pages, ref)
	return nil
}

func (f *InMemory) MapBatch(fromDomain int, refs []nnpcore.GrantRef) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]byte, 0, len(refs)*nnpcore.PageSize)
	for _, ref := range refs {
		page, ok := f.pages[ref]
		if !ok {
			return nil, fmt.Errorf("%w: unknown ref %d", nnpcore.ErrMapFailed, ref)
		}
		out = append(out, page...)
	}
	return out, nil
}

func (f *InMemory) Unmap(mapped []byte) error {
	return nil
}

// Outstanding returns the set of refs that have been granted but not yet
// revoked. Used by tests asserting property P3.
func (f *InMemory) Outstanding() map[nnpcore.GrantRef]bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[nnpcore.GrantRef]bool, len(f.pages))
	for ref := range f.pages {
		out[ref] = true
	}
	return out
}
