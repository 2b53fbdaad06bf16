package limiter

import (
	"context"
	"sync"
	"time"
)

type attempt struct {
	fails        int
	updatedAt    time.Time
	blockedUntil time.Time
}

// Memory is a process-local Limiter for the dev backend.
type Memory struct {
	mu     sync.Mutex
	policy Policy
	now    func() time.Time
	byKey  map[string]*attempt
}

var _ Limiter = (*Memory)(nil)

// NewMemory constructs an in-memory limiter.
func NewMemory(p Policy) *Memory {
	return &Memory{policy: p, now: time.Now, byKey: make(map[string]*attempt)}
}

func key(account string, client []byte) string {
	return NormalizeAccount(account) + "\x00" + string(client)
}

// Allow reports whether login is currently allowed.
func (m *Memory) Allow(_ context.Context, account string, client []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byKey[key(account, client)]
	if !ok {
		return true, 0, nil
	}
	if now := m.now(); a.blockedUntil.After(now) {
		return false, a.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success forgets the pair.
func (m *Memory) Success(_ context.Context, account string, client []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byKey, key(account, client))
	return nil
}

// Failure counts a failed attempt inside the window and blocks at the threshold.
func (m *Memory) Failure(_ context.Context, account string, client []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	k := key(account, client)
	a, ok := m.byKey[k]
	if !ok || now.Sub(a.updatedAt) > m.policy.Window {
		a = &attempt{}
		m.byKey[k] = a
	}
	a.fails++
	a.updatedAt = now
	if a.fails >= m.policy.MaxFails {
		a.blockedUntil = now.Add(m.policy.BlockFor)
		a.fails = 0
		return true, m.policy.BlockFor, nil
	}
	return false, 0, nil
}
