package nnpcore

import (
	"encoding/binary"
	"fmt"
)

// GrantRef is an opaque handle issued by a GrantFacility when one domain
// authorizes another to map a single page of its memory. Each GrantRef must
// later be revoked exactly once.
type GrantRef uint64

// GrantFacility is the collaborator interface the hypervisor's grant table
// would normally provide. nnpcore never talks to a real hypervisor; see
// nnpcore/grantfacility for an in-memory test double and an mmap-backed
// implementation. Both keep their grant table in the granting process's
// memory, so MapBatch resolves only refs issued by the same facility value;
// neither shares pages with a separate OS process.
type GrantFacility interface {
	// GrantRead authorizes targetDomain to map page read-only and returns
	// the handle for that authorization.
	GrantRead(targetDomain int, page []byte) (GrantRef, error)

	// Revoke ends the access previously authorized by ref. Revoking an
	// already-revoked or unknown ref is an error.
	Revoke(ref GrantRef) error

	// MapBatch maps the pages named by refs, in order, from fromDomain as a
	// single contiguous read-only region. Returns nil, ErrMapFailed if the
	// facility cannot satisfy the request.
	MapBatch(fromDomain int, refs []GrantRef) ([]byte, error)

	// Unmap releases a region previously returned by MapBatch.
	Unmap(mapped []byte) error
}

// PageAllocator is the collaborator interface the page allocator provides:
// 2^order contiguous, page-aligned pages, virtually mapped. There is no Free
// in the core — per §9, backend WeightBuffers are an intentional
// process-lifetime cache.
type PageAllocator interface {
	AllocPages(order int) ([]byte, error)
}

// perDirPageRefs is how many GrantRefs fit in one directory page.
const perDirPageRefs = PageSize / grantRefSize

// dirPagesFor is dir_pages = ceil(|grants| * sizeof(GrantRef) / PAGE_SIZE),
// property P2's right-hand side.
func dirPagesFor(numGrants int) int {
	return DivideRoundUp(numGrants*grantRefSize, PageSize)
}

// EncodeGrantDirectory copies grants into dirPages (per_page = PageSize /
// sizeof(GrantRef) slots per page), issues one GrantRef per directory page to
// targetDomain, and returns the ordered directory refs. This is §4.1's
// encode().
//
// It is a programmer error, not a runtime condition, to call this with the
// wrong number of directory pages for the grant count, or more directory
// pages than MaxDirPages allows; both abort via panic, matching the
// original's assert(total_grant_ref_ref_page <= 128).
func EncodeGrantDirectory(facility GrantFacility, targetDomain int, grants []GrantRef, dirPages [][]byte) ([]GrantRef, error) {
	want := dirPagesFor(len(grants))
	if len(dirPages) != want {
		panic(fmt.Sprintf("nnpcore: EncodeGrantDirectory given %d directory pages, want %d for %d grants", len(dirPages), want, len(grants)))
	}
	if len(dirPages) > MaxDirPages {
		panic(fmt.Sprintf("nnpcore: EncodeGrantDirectory given %d directory pages, exceeds MaxDirPages=%d", len(dirPages), MaxDirPages))
	}

	for i, g := range grants {
		page := dirPages[i/perDirPageRefs]
		slot := (i % perDirPageRefs) * grantRefSize
		binary.LittleEndian.PutUint64(page[slot:slot+grantRefSize], uint64(g))
	}

	directoryRefs := make([]GrantRef, 0, len(dirPages))
	for _, page := range dirPages {
		ref, err := facility.GrantRead(targetDomain, page)
		if err != nil {
			return nil, fmt.Errorf("nnpcore: granting directory page: %w", err)
		}
		directoryRefs = append(directoryRefs, ref)
	}

	return directoryRefs, nil
}

// DecodeGrantDirectory maps the directory pages named by directoryRefs
// read-only from fromDomain, reads the first expectedGrantsCount slots in
// order, unmaps the directory pages, and returns the recovered GrantVector.
// This is §4.1's decode().
func DecodeGrantDirectory(facility GrantFacility, fromDomain int, directoryRefs []GrantRef, expectedGrantsCount int) ([]GrantRef, error) {
	mapped, err := facility.MapBatch(fromDomain, directoryRefs)
	if err != nil || mapped == nil {
		return nil, fmt.Errorf("%w: %v", ErrMapFailed, err)
	}
	defer facility.Unmap(mapped)

	available := len(mapped) / grantRefSize
	if available < expectedGrantsCount {
		return nil, fmt.Errorf("%w: directory carries %d slots, expected %d", ErrProtocolDesync, available, expectedGrantsCount)
	}

	grants := make([]GrantRef, expectedGrantsCount)
	for i := range grants {
		off := i * grantRefSize
		grants[i] = GrantRef(binary.LittleEndian.Uint64(mapped[off : off+grantRefSize]))
	}
	return grants, nil
}
