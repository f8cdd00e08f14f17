package nnpcore

import (
	"fmt"
	"strconv"
	"strings"
)

// Store is the collaborator interface for the hierarchical config store
// with per-path watches that the two domains rendezvous through. A real
// deployment would use Xenstore; nnpshare ships an in-memory implementation
// (nnpcore/store_mem.go, for tests and same-process demos) and a
// file-tree-plus-fsnotify implementation (nnpcore/store_file.go, for two
// real OS processes on one host). The original's transactional reads/writes
// (XBT_NIL throughout) collapse to plain reads/writes here: nnpshare never
// needs more than single-key atomicity, which a single Write call already
// gives.
type Store interface {
	// Read returns the value at path, or an error if it does not exist.
	Read(path string) (string, error)

	// Write sets path to value, creating it if necessary.
	Write(path string, value string) error

	// WatchSubtree returns a channel that receives the full path of any key
	// written at or under prefix. The channel is closed when ctx is done.
	WatchSubtree(ctx storeContext, prefix string) (<-chan string, error)

	// WatchPath returns a channel that receives a value each time path is
	// written. The channel is closed when ctx is done.
	WatchPath(ctx storeContext, path string) (<-chan struct{}, error)
}

// storeContext is the subset of context.Context the store needs; declared
// locally so callers can pass context.Context without an import cycle
// concern and so the interface's intent (cancellation only) is explicit.
type storeContext interface {
	Done() <-chan struct{}
}

// Store protocol paths, per spec.md §4.2.
const (
	pathBackend       = "/backend"
	pathFrontendDir   = "/frontend"
	closeToken        = "close"
)

// FrontendKey is the path a frontend writes its requested model name (or
// "close") to.
func FrontendKey(feID int) string {
	return fmt.Sprintf("%s/%d", pathFrontendDir, feID)
}

// BackendSessionKey is the directory a backend publishes a session's
// grant-ref-ref and state under.
func BackendSessionKey(feID int) string {
	return fmt.Sprintf("/backend/%d", feID)
}

// GrantRefRefKey is where the backend publishes a session's directory refs.
func GrantRefRefKey(feID int) string {
	return BackendSessionKey(feID) + "/grant-ref-ref"
}

// StateKey is where the backend publishes a session's publication state.
func StateKey(feID int) string {
	return BackendSessionKey(feID) + "/state"
}

// ParseFrontendKey extracts the fe_id from a path the backend's subtree
// watch fired on, reporting ok=false for anything that isn't a direct child
// of /frontend.
func ParseFrontendKey(path string) (feID int, ok bool) {
	rest, found := strings.CutPrefix(path, pathFrontendDir+"/")
	if !found || strings.Contains(rest, "/") || rest == "" {
		return 0, false
	}
	id, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return id, true
}

// EventKind classifies a store event per §4.2.
type EventKind int

const (
	// IgnoreEvent is any path that doesn't match the frontend-key pattern.
	IgnoreEvent EventKind = iota
	// NewFrontendEvent is a non-"close" write to /frontend/<fe_id>.
	NewFrontendEvent
	// CloseFrontendEvent is a "close" write to /frontend/<fe_id>.
	CloseFrontendEvent
)

// ClassifyEvent reads path's current value from store and classifies it.
// Any read error downgrades the event to IgnoreEvent, per spec.
func ClassifyEvent(store Store, path string) (kind EventKind, feID int, model string) {
	feID, ok := ParseFrontendKey(path)
	if !ok {
		return IgnoreEvent, 0, ""
	}

	value, err := store.Read(path)
	if err != nil {
		return IgnoreEvent, 0, ""
	}

	if value == closeToken {
		return CloseFrontendEvent, feID, ""
	}
	return NewFrontendEvent, feID, value
}

// FormatGrantRefRef renders directory refs as the store's space-separated
// decimal list, trailing space included (the original's snprintf loop
// always appends one, and the decode side tolerates it).
func FormatGrantRefRef(refs []GrantRef) string {
	var b strings.Builder
	for _, r := range refs {
		fmt.Fprintf(&b, "%d ", uint64(r))
	}
	return b.String()
}

// ReadInteger reads path and parses it as a decimal integer, the Go
// analogue of xenbus_read_integer.
func ReadInteger(store Store, path string) (int, error) {
	value, err := store.Read(path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("nnpcore: %q is not an integer: %w", path, err)
	}
	return n, nil
}

// ParseGrantRefRef parses a space-separated decimal list of grant refs.
func ParseGrantRefRef(value string) ([]GrantRef, error) {
	fields := strings.Fields(value)
	refs := make([]GrantRef, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("nnpcore: malformed grant-ref-ref token %q: %w", f, err)
		}
		refs = append(refs, GrantRef(n))
	}
	return refs, nil
}
