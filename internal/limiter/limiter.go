// Package limiter throttles failed logins per (account, client) pair.
package limiter

import (
	"context"
	"crypto/sha256"
	"strings"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether a login is currently allowed and, if not, for how long it is blocked.
	Allow(ctx context.Context, account string, client []byte) (bool, time.Duration, error)
	// Success resets the counters after a successful login.
	Success(ctx context.Context, account string, client []byte) error
	// Failure records a failed attempt and reports whether it placed a block.
	Failure(ctx context.Context, account string, client []byte) (bool, time.Duration, error)
}

// Policy is the sliding window shared by all implementations.
type Policy struct {
	Window   time.Duration // failures older than this are forgotten
	MaxFails int           // failures within Window that trigger a block
	BlockFor time.Duration
}

// DefaultPolicy allows five failures per quarter hour.
var DefaultPolicy = Policy{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}

// HashClient returns a stable hash for a client address so raw IPs are never kept.
func HashClient(addr string) []byte {
	h := sha256.Sum256([]byte(addr))
	return h[:]
}

// NormalizeAccount folds case and surrounding space of an email-like account.
func NormalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}
