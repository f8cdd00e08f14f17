// Package pages implements nnpcore.PageAllocator: the backend's source of
// contiguous, page-aligned, power-of-two-sized memory regions.
package pages

import (
	"fmt"
	"sync"

	"github.com/wnagchenghku/nnpshare/nnpcore"
)

// InMemory is a PageAllocator backed by plain Go heap memory. It is the test
// double used wherever a real mmap-backed region isn't required, matching
// how nnpcore's own tests use fakeFacility rather than the real grant
// facility.
type InMemory struct {
	mu sync.Mutex
}

// NewInMemory returns a ready-to-use InMemory allocator.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// AllocPages returns 2^order pages of zeroed memory.
func (a *InMemory) AllocPages(order int) ([]byte, error) {
	if order < 0 {
		return nil, fmt.Errorf("pages: negative order %d", order)
	}
	n := (1 << uint(order)) * nnpcore.PageSize
	return make([]byte, n), nil
}
