// Package sealed wraps a kvstore.Store so that values are encrypted at rest.
//
// Each value is sealed with a per-key subkey and the key name as associated data,
// so an entry copied under another key fails to open.
package sealed

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/and161185/civictrack/internal/crypto/clientcrypto"
	"github.com/and161185/civictrack/internal/kvstore"
)

// ErrCorrupt is returned by Get when a stored value cannot be decoded or opened.
var ErrCorrupt = errors.New("sealed: corrupt value")

type store struct {
	inner  kvstore.Store
	master []byte
}

type batchStore struct {
	*store
	batch kvstore.BatchSetter
}

// New wraps inner with encryption under master. The returned store implements
// kvstore.BatchSetter only when inner does, so callers keep their ordered fallback.
func New(inner kvstore.Store, master []byte) (kvstore.Store, error) {
	if len(master) != clientcrypto.KeyLen {
		return nil, fmt.Errorf("sealed: master key must be %d bytes", clientcrypto.KeyLen)
	}
	s := &store{inner: inner, master: append([]byte(nil), master...)}
	if b, ok := inner.(kvstore.BatchSetter); ok {
		return &batchStore{store: s, batch: b}, nil
	}
	return s, nil
}

func (s *store) seal(key, value string) (string, error) {
	sub, err := clientcrypto.DeriveSubkey(s.master, key)
	if err != nil {
		return "", err
	}
	ct, err := clientcrypto.Seal(sub, []byte(key), []byte(value))
	if err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(ct), nil
}

func (s *store) open(key, value string) (string, error) {
	raw, err := base64.RawStdEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrCorrupt, key)
	}
	sub, err := clientcrypto.DeriveSubkey(s.master, key)
	if err != nil {
		return "", err
	}
	pt, err := clientcrypto.Open(sub, []byte(key), raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrCorrupt, key)
	}
	return string(pt), nil
}

// Get returns the decrypted value for key.
func (s *store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return s.open(key, v)
}

// Set encrypts value and stores it under key.
func (s *store) Set(ctx context.Context, key, value string) error {
	ct, err := s.seal(key, value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, ct)
}

// Delete removes key from the wrapped store.
func (s *store) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// DeleteMany passes through to the wrapped store.
func (s *store) DeleteMany(ctx context.Context, keys ...string) error {
	return kvstore.DeleteAll(ctx, s.inner, keys...)
}

// SetMany seals every value and writes them in one batch.
func (b *batchStore) SetMany(ctx context.Context, kv map[string]string) error {
	sealed := make(map[string]string, len(kv))
	for k, v := range kv {
		ct, err := b.seal(k, v)
		if err != nil {
			return err
		}
		sealed[k] = ct
	}
	return b.batch.SetMany(ctx, sealed)
}
