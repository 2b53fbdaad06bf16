// Package kvstore defines the persisted key-value store used to mirror the session.
package kvstore

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a durable string-keyed, string-valued store without transactions.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// BatchSetter is implemented by stores that can write several keys atomically.
type BatchSetter interface {
	// SetMany stores all pairs or none of them.
	SetMany(ctx context.Context, kv map[string]string) error
}

// BatchDeleter is implemented by stores that can remove several keys at once.
type BatchDeleter interface {
	// DeleteMany removes all given keys; absent keys are ignored.
	DeleteMany(ctx context.Context, keys ...string) error
}

// Memory is an in-process Store. It is the default for tests and the "memory" backend.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
}

var (
	_ Store        = (*Memory)(nil)
	_ BatchSetter  = (*Memory)(nil)
	_ BatchDeleter = (*Memory)(nil)
)

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

// Get returns the value for key.
func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// SetMany stores all pairs under one lock.
func (m *Memory) SetMany(_ context.Context, kv map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range kv {
		m.items[k] = v
	}
	return nil
}

// DeleteMany removes all keys under one lock.
func (m *Memory) DeleteMany(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

// SetAll writes kv through BatchSetter when s supports it, else key by key in
// the order given by keys. Keys missing from kv are skipped.
func SetAll(ctx context.Context, s Store, keys []string, kv map[string]string) error {
	if b, ok := s.(BatchSetter); ok {
		return b.SetMany(ctx, kv)
	}
	for _, k := range keys {
		v, ok := kv[k]
		if !ok {
			continue
		}
		if err := s.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAll removes keys through BatchDeleter when s supports it. Otherwise every
// key is attempted and the joined errors are returned.
func DeleteAll(ctx context.Context, s Store, keys ...string) error {
	if b, ok := s.(BatchDeleter); ok {
		return b.DeleteMany(ctx, keys...)
	}
	var errList []error
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
