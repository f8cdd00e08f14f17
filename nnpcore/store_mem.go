package nnpcore

import (
	"fmt"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// MemStore is an in-memory Store, used by tests and by cmd/nnpshare when
// store.backend is "memory" (visible only inside that one process). Reads and writes are lock-free
// via xsync.Map; watch fan-out uses a small mutex-guarded subscriber list,
// since registration churn is rare compared to reads.
type MemStore struct {
	values *xsync.Map[string, string]

	mu          sync.Mutex
	subtreeSubs map[string][]chan string
	pathSubs    map[string][]chan struct{}
	nextSubID   int
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		values:      xsync.NewMap[string, string](),
		subtreeSubs: map[string][]chan string{},
		pathSubs:    map[string][]chan struct{}{},
	}
}

func (s *MemStore) Read(path string) (string, error) {
	v, ok := s.values.Load(path)
	if !ok {
		return "", fmt.Errorf("nnpcore: no such store path %q", path)
	}
	return v, nil
}

func (s *MemStore) Write(path string, value string) error {
	s.values.Store(path, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	for prefix, chans := range s.subtreeSubs {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		for _, ch := range chans {
			select {
			case ch <- path:
			default:
			}
		}
	}
	for _, ch := range s.pathSubs[path] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (s *MemStore) WatchSubtree(ctx storeContext, prefix string) (<-chan string, error) {
	ch := make(chan string, 64)

	s.mu.Lock()
	s.subtreeSubs[prefix] = append(s.subtreeSubs[prefix], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		s.subtreeSubs[prefix] = removeChan(s.subtreeSubs[prefix], ch)
		close(ch)
	}()

	return ch, nil
}

func (s *MemStore) WatchPath(ctx storeContext, path string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 8)

	s.mu.Lock()
	s.pathSubs[path] = append(s.pathSubs[path], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		s.pathSubs[path] = removeStructChan(s.pathSubs[path], ch)
		close(ch)
	}()

	return ch, nil
}

func removeChan(chans []chan string, target chan string) []chan string {
	out := chans[:0]
	for _, c := range chans {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}

func removeStructChan(chans []chan struct{}, target chan struct{}) []chan struct{} {
	out := chans[:0]
	for _, c := range chans {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}
