// Package filestore implements kvstore.Store as a single JSON file in the user config dir.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/and161185/civictrack/internal/kvstore"
)

// FileName is the store file inside the config dir.
const FileName = "store.json"

// DefaultDir returns $XDG_CONFIG_HOME/civictrack or ~/.config/civictrack.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "civictrack")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "civictrack")
}

// Store keeps all keys in one file; every mutation rewrites the file via rename,
// so a crash leaves either the old or the new content.
type Store struct {
	mu   sync.Mutex
	path string
}

var (
	_ kvstore.Store        = (*Store)(nil)
	_ kvstore.BatchSetter  = (*Store)(nil)
	_ kvstore.BatchDeleter = (*Store)(nil)
)

// New returns a store backed by dir/store.json. The dir is created on first write.
func New(dir string) *Store {
	if dir == "" {
		dir = DefaultDir()
	}
	return &Store{path: filepath.Join(dir, FileName)}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Get returns the value for key.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := m[key]
	if !ok {
		return "", kvstore.ErrNotFound
	}
	return v, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

// SetMany stores all pairs in a single file replace.
func (s *Store) SetMany(_ context.Context, kv map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		// a corrupt file is replaced rather than blocking new sessions
		m = map[string]string{}
	}
	for k, v := range kv {
		m[k] = v
	}
	return s.save(m)
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.DeleteMany(ctx, key)
}

// DeleteMany removes keys in a single file replace.
func (s *Store) DeleteMany(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		// unreadable file: drop it entirely
		return os.Remove(s.path)
	}
	changed := false
	for _, k := range keys {
		if _, ok := m[k]; ok {
			delete(m, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save(m)
}

func (s *Store) load() (map[string]string, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := map[string]string{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) save(m map[string]string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".store-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}
