package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PG keeps login attempts in the login_attempts table so several dev backends
// sharing one database agree on lockouts.
type PG struct {
	q      pgxQuerier
	policy Policy
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Limiter = (*PG)(nil)

// NewPG constructs a PostgreSQL-backed limiter over any pgx pool or connection.
func NewPG(q pgxQuerier, p Policy) *PG {
	return &PG{q: q, policy: p}
}

const (
	selectAttemptQ = `SELECT blocked_until FROM login_attempts WHERE account=$1 AND client_hash=$2`

	resetAttemptQ = `
INSERT INTO login_attempts (account, client_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 0, 'epoch', now())
ON CONFLICT (account, client_hash)
DO UPDATE SET fail_count = 0, blocked_until = 'epoch', updated_at = now()`

	recordFailureQ = `
INSERT INTO login_attempts (account, client_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 1, 'epoch', now())
ON CONFLICT (account, client_hash) DO UPDATE
SET fail_count = CASE WHEN now() - login_attempts.updated_at > $3::interval
                      THEN 1 ELSE login_attempts.fail_count + 1 END,
    updated_at = now()
RETURNING fail_count`

	blockQ = `UPDATE login_attempts SET blocked_until=$3, fail_count=0 WHERE account=$1 AND client_hash=$2`
)

// Allow reports whether login is currently allowed.
func (l *PG) Allow(ctx context.Context, account string, client []byte) (bool, time.Duration, error) {
	var blockedUntil time.Time
	err := l.q.QueryRow(ctx, selectAttemptQ, NormalizeAccount(account), client).Scan(&blockedUntil)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	case err != nil:
		return false, 0, err
	}
	if d := time.Until(blockedUntil); d > 0 {
		return false, d, nil
	}
	return true, 0, nil
}

// Success resets the counters.
func (l *PG) Success(ctx context.Context, account string, client []byte) error {
	_, err := l.q.Exec(ctx, resetAttemptQ, NormalizeAccount(account), client)
	return err
}

// Failure records a failed attempt and blocks once the threshold is reached.
func (l *PG) Failure(ctx context.Context, account string, client []byte) (bool, time.Duration, error) {
	acct := NormalizeAccount(account)
	var fails int
	if err := l.q.QueryRow(ctx, recordFailureQ, acct, client, l.policy.Window).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails < l.policy.MaxFails {
		return false, 0, nil
	}
	if _, err := l.q.Exec(ctx, blockQ, acct, client, time.Now().Add(l.policy.BlockFor)); err != nil {
		return false, 0, err
	}
	return true, l.policy.BlockFor, nil
}
