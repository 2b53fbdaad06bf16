package postgres

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/civictrack/internal/kvstore"
)

// DefaultNamespace is used when several client profiles do not share a database.
const DefaultNamespace = "default"

// Store implements kvstore.Store over the kv_store table, scoped to one namespace.
type Store struct {
	db *DB
	ns string
}

var (
	_ kvstore.Store        = (*Store)(nil)
	_ kvstore.BatchSetter  = (*Store)(nil)
	_ kvstore.BatchDeleter = (*Store)(nil)
)

// NewStore constructs a store for namespace ns.
func NewStore(db *DB, ns string) *Store {
	if ns == "" {
		ns = DefaultNamespace
	}
	return &Store{db: db, ns: ns}
}

const upsertQ = `
INSERT INTO kv_store (namespace, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

// Get selects a value by key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	const q = `SELECT value FROM kv_store WHERE namespace=$1 AND key=$2`
	var v string
	if err := s.db.Pool.QueryRow(ctx, q, s.ns, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", kvstore.ErrNotFound
		}
		return "", err
	}
	return v, nil
}

// Set upserts a single key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.Pool.Exec(ctx, upsertQ, s.ns, key, value)
	return err
}

// SetMany upserts all pairs in one transaction.
func (s *Store) SetMany(ctx context.Context, kv map[string]string) (err error) {
	if len(kv) == 0 {
		return nil
	}
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	for _, k := range sortedKeys(kv) {
		if _, err = tx.Exec(ctx, upsertQ, s.ns, k, kv[k]); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.DeleteMany(ctx, key)
}

// DeleteMany removes keys with a single statement.
func (s *Store) DeleteMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	const q = `DELETE FROM kv_store WHERE namespace=$1 AND key = ANY($2)`
	_, err := s.db.Pool.Exec(ctx, q, s.ns, keys)
	return err
}

// sortedKeys gives SetMany a stable statement order.
func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
