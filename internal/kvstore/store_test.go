package kvstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// plainStore hides the batch interfaces of Memory and records write order.
type plainStore struct {
	inner  *Memory
	order  []string
	setErr map[string]error
	delErr map[string]error
}

func (p *plainStore) Get(ctx context.Context, key string) (string, error) {
	return p.inner.Get(ctx, key)
}
func (p *plainStore) Set(ctx context.Context, key, value string) error {
	if err := p.setErr[key]; err != nil {
		return err
	}
	p.order = append(p.order, key)
	return p.inner.Set(ctx, key, value)
}
func (p *plainStore) Delete(ctx context.Context, key string) error {
	if err := p.delErr[key]; err != nil {
		return err
	}
	return p.inner.Delete(ctx, key)
}

func TestMemory_Basics(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "k", "v"))
	v, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", v)

	require.NoError(t, m.Delete(ctx, "k"))
	require.NoError(t, m.Delete(ctx, "k"))
	_, err = m.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetAll_UsesBatchWhenAvailable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, SetAll(ctx, m, []string{"a", "b"}, map[string]string{"a": "1", "b": "2"}))
	v, _ := m.Get(ctx, "b")
	require.Equal(t, "2", v)
}

func TestSetAll_SequentialOrderAndStopOnError(t *testing.T) {
	ctx := context.Background()
	p := &plainStore{inner: NewMemory()}

	require.NoError(t, SetAll(ctx, p, []string{"token", "user", "missing"}, map[string]string{"user": "u", "token": "t"}))
	require.Equal(t, []string{"token", "user"}, p.order)

	p2 := &plainStore{inner: NewMemory(), setErr: map[string]error{"user": errors.New("disk full")}}
	err := SetAll(ctx, p2, []string{"token", "user"}, map[string]string{"token": "t", "user": "u"})
	require.Error(t, err)
	_, err = p2.Get(ctx, "token")
	require.NoError(t, err, "first write is not rolled back on plain stores")
}

func TestDeleteAll_AttemptsEveryKey(t *testing.T) {
	ctx := context.Background()
	p := &plainStore{inner: NewMemory(), delErr: map[string]error{"token": errors.New("io")}}
	_ = p.inner.Set(ctx, "token", "t")
	_ = p.inner.Set(ctx, "user", "u")

	err := DeleteAll(ctx, p, "token", "user")
	require.Error(t, err)
	_, err = p.Get(ctx, "user")
	require.ErrorIs(t, err, ErrNotFound)

	m := NewMemory()
	_ = m.Set(ctx, "a", "1")
	require.NoError(t, DeleteAll(ctx, m, "a", "b"))
}
