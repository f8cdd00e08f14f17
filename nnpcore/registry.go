package nnpcore

import (
	"container/list"
	"fmt"
	"sync"
)

// SessionState tracks a session's position in the publish protocol.
type SessionState string

const (
	// SessionPublishing names a session whose grants are issued but not
	// yet published. Backend never assigns it: a session enters the
	// registry only after state is published, already SessionReady.
	SessionPublishing SessionState = "publishing"
	// SessionReady is set once grant-ref-ref and state have been
	// published to the store and the frontend may map and read.
	SessionReady SessionState = "ready"
)

// Session is the backend's bookkeeping for one frontend domain's
// outstanding model publication: the grants it holds open, and what it
// must revoke on CLOSE_FRONTEND or registry eviction.
type Session struct {
	FrontendDomainID int
	Model            string

	// DataGrants are the per-tensor-page grants (§4.1's leaf grants).
	DataGrants []GrantRef
	// DirectoryGrants are the grants over the directory pages themselves.
	DirectoryGrants []GrantRef
	// DirectoryRefs are the refs published to the frontend as its
	// grant-ref-ref, i.e. DirectoryGrants in publication order.
	DirectoryRefs []GrantRef

	TotalPages int
	DirPages   int

	State SessionState
}

// SessionRegistry is the backend's lifetime registry (§2 module 6): every
// currently-open session, keyed by frontend domain id, kept in arrival
// order so diagnostics can present a stable listing. All methods are safe
// for concurrent use; the backend event loop is the sole writer, and the
// diagnostics HTTP handler and metrics collector are concurrent readers.
type SessionRegistry struct {
	mu      sync.Mutex
	order   *list.List
	byFeID  map[int]*list.Element
}

// NewSessionRegistry returns an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		order:  list.New(),
		byFeID: map[int]*list.Element{},
	}
}

// Put inserts or replaces the session for its FrontendDomainID.
func (r *SessionRegistry) Put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.byFeID[s.FrontendDomainID]; ok {
		el.Value = s
		return
	}
	el := r.order.PushBack(s)
	r.byFeID[s.FrontendDomainID] = el
}

// Get returns the session for feID, if any.
func (r *SessionRegistry) Get(feID int) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.byFeID[feID]
	if !ok {
		return nil, false
	}
	return el.Value.(*Session), true
}

// Remove evicts the session for feID, returning it if present.
func (r *SessionRegistry) Remove(feID int) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.byFeID[feID]
	if !ok {
		return nil, false
	}
	delete(r.byFeID, feID)
	r.order.Remove(el)
	return el.Value.(*Session), true
}

// Len returns the number of currently-open sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}

// All returns a snapshot of every open session in arrival order.
func (r *SessionRegistry) All() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, r.order.Len())
	for el := r.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*Session))
	}
	return out
}

// OutstandingGrants returns every grant (data and directory) still held
// open across all sessions, used by P3 tests asserting no leaks on close.
func (r *SessionRegistry) OutstandingGrants() []GrantRef {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []GrantRef
	for el := r.order.Front(); el != nil; el = el.Next() {
		s := el.Value.(*Session)
		out = append(out, s.DataGrants...)
		out = append(out, s.DirectoryGrants...)
	}
	return out
}

func (r *SessionRegistry) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("SessionRegistry{sessions=%d}", r.order.Len())
}
