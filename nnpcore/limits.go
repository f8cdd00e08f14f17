package nnpcore

// PageSize is the fixed unit of the address space that the grant facility
// and page allocator operate in. It matches the host's page size so that
// mmap-backed pages map one-for-one onto GrantRefs.
const PageSize = 4096

// MaxDirPages is the largest number of directory pages a single session may
// use to hold its GrantVector. At 4096-byte pages and 8-byte grant refs each
// directory page holds 4096 / 8 = 512 data-page refs, so 128 directory pages
// cover 128 * 512 = 65536 data pages. With 4-byte refs the ceiling would be
// ~131072; a Go GrantRef is a uint64, which halves it, but no model in
// models_backend.go comes near either ceiling.
const MaxDirPages = 128

// MaxModelNameLen is the longest model name accepted by the store protocol.
const MaxModelNameLen = 15

// MaxGrantRefRefBytes bounds the "grant-ref-ref" store value: the decimal,
// space-separated encoding of a session's directory refs.
const MaxGrantRefRefBytes = 1024

// grantRefSize is sizeof(GrantRef) for the purposes of §3's dir_pages formula.
const grantRefSize = 8
