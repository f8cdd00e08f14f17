package nnpcore

import "errors"

// Error kinds from the store-protocol error design. These are returned, not
// panicked, with the single exception of ErrConfigurationFatal being turned
// into a process exit by cmd/nnpshare (never inside this package).
var (
	// ErrConfigurationFatal means the process cannot start as configured:
	// /backend was missing or non-integer at frontend init, or the loaded
	// configuration failed validation.
	ErrConfigurationFatal = errors.New("nnpcore: fatal configuration error")

	// ErrMapFailed means the grant facility could not map the requested
	// pages. The frontend's Init returns this rather than handing back a
	// Frontend with a nil base.
	ErrMapFailed = errors.New("nnpcore: grant facility failed to map pages")

	// ErrUnknownModel means the requested model name is not in the table.
	ErrUnknownModel = errors.New("nnpcore: unknown model")

	// ErrProtocolDesync means grant-ref-ref carried fewer or more tokens
	// than the expected dir_pages count.
	ErrProtocolDesync = errors.New("nnpcore: grant-ref-ref token count does not match expected directory page count")

	// ErrModelNameTooLong guards the §6 fixed limit.
	ErrModelNameTooLong = errors.New("nnpcore: model name exceeds MaxModelNameLen")

	// ErrTooManyDirPages guards the §6 fixed limit.
	ErrTooManyDirPages = errors.New("nnpcore: directory page count exceeds MaxDirPages")

	// ErrGrantRefRefTooLarge guards the §6 fixed limit.
	ErrGrantRefRefTooLarge = errors.New("nnpcore: grant-ref-ref payload exceeds MaxGrantRefRefBytes")
)
