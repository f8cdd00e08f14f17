package nnpcore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// FileStore is a Store backed by a directory tree plus fsnotify, letting two
// real OS processes on one host play backend and frontend against the same
// config store the way they'd play against Xenstore. Each store path maps
// to a file at root/<path without its leading slash>; a write is a file
// write, a watch is an fsnotify watch on the containing directory.
type FileStore struct {
	root string
}

// NewFileStore returns a FileStore rooted at root, creating it if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("nnpcore: create store root %q: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) filePath(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(path, "/")))
}

func (s *FileStore) storePath(file string) (string, error) {
	rel, err := filepath.Rel(s.root, file)
	if err != nil {
		return "", err
	}
	return "/" + filepath.ToSlash(rel), nil
}

func (s *FileStore) Read(path string) (string, error) {
	data, err := os.ReadFile(s.filePath(path))
	if err != nil {
		return "", fmt.Errorf("nnpcore: read store path %q: %w", path, err)
	}
	return string(data), nil
}

func (s *FileStore) Write(path string, value string) error {
	file := s.filePath(path)
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("nnpcore: write store path %q: %w", path, err)
	}
	if err := os.WriteFile(file, []byte(value), 0o644); err != nil {
		return fmt.Errorf("nnpcore: write store path %q: %w", path, err)
	}
	return nil
}

func (s *FileStore) WatchSubtree(ctx storeContext, prefix string) (<-chan string, error) {
	dir := s.filePath(prefix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("nnpcore: watch subtree %q: %w", prefix, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("nnpcore: watch subtree %q: %w", prefix, err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("nnpcore: watch subtree %q: %w", prefix, err)
	}

	out := make(chan string, 64)
	go func() {
		defer watcher.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				p, err := s.storePath(ev.Name)
				if err != nil {
					continue
				}
				select {
				case out <- p:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("prefix", prefix).Msg("store watch error")
			}
		}
	}()

	return out, nil
}

func (s *FileStore) WatchPath(ctx storeContext, path string) (<-chan struct{}, error) {
	file := s.filePath(path)
	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("nnpcore: watch path %q: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("nnpcore: watch path %q: %w", path, err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("nnpcore: watch path %q: %w", path, err)
	}

	out := make(chan struct{}, 8)
	go func() {
		defer watcher.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != file {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("path", path).Msg("store watch error")
			}
		}
	}()

	return out, nil
}
