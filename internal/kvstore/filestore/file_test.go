package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/civictrack/internal/kvstore"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "civictrack")
}

func TestDefaultDir_UsesXDG(t *testing.T) {
	base := withTmpConfig(t)
	require.Equal(t, base, DefaultDir())
	require.Equal(t, filepath.Join(base, FileName), New("").Path())
}

func TestStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	_, err := s.Get(ctx, "token")
	require.ErrorIs(t, err, kvstore.ErrNotFound)

	require.NoError(t, s.Set(ctx, "token", "t1"))
	require.NoError(t, s.SetMany(ctx, map[string]string{"user": `{"_id":"u1"}`, "expires_at": "x"}))

	v, err := s.Get(ctx, "token")
	require.NoError(t, err)
	require.Equal(t, "t1", v)

	// a fresh handle over the same dir sees the persisted data
	s2 := New(filepath.Dir(s.Path()))
	v, err = s2.Get(ctx, "user")
	require.NoError(t, err)
	require.Equal(t, `{"_id":"u1"}`, v)

	require.NoError(t, s.DeleteMany(ctx, "token", "user", "nope"))
	_, err = s.Get(ctx, "token")
	require.ErrorIs(t, err, kvstore.ErrNotFound)
	v, err = s.Get(ctx, "expires_at")
	require.NoError(t, err)
	require.Equal(t, "x", v)
}

func TestStore_FilePermissions(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	require.NoError(t, s.Set(ctx, "k", "v"))
	st, err := os.Stat(s.Path())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), st.Mode().Perm())
}

func TestStore_CorruptFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o600))

	_, err := s.Get(ctx, "token")
	require.Error(t, err)
	require.NotErrorIs(t, err, kvstore.ErrNotFound)

	// delete over a corrupt file removes it
	require.NoError(t, s.Delete(ctx, "token"))
	_, err = os.Stat(s.Path())
	require.True(t, os.IsNotExist(err))

	// set over a corrupt file replaces it
	require.NoError(t, os.WriteFile(s.Path(), []byte("garbage"), 0o600))
	require.NoError(t, s.Set(ctx, "token", "t2"))
	v, err := s.Get(ctx, "token")
	require.NoError(t, err)
	require.Equal(t, "t2", v)
}

func TestStore_DeleteMissingFile(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Delete(context.Background(), "token"))
}
