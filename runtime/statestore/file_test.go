package statestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		return NewFileStore(filepath.Join(t.TempDir(), "profile.yaml"))
	})
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "profile.yaml")

	require.NoError(t, NewFileStore(path).Set(ctx, KeyRememberedUserName, "Rina"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "nary_user_name: Rina")

	got, err := NewFileStore(path).Get(ctx, KeyRememberedUserName)
	require.NoError(t, err)
	assert.Equal(t, "Rina", got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- not\n- a map\n"), 0o600))

	s := NewFileStore(path)
	_, err := s.Get(context.Background(), KeyRememberedUserName)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse profile file")
	assert.Equal(t, path, s.Path())
}

func TestFileStore_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	s := NewFileStore(path)
	_, err := s.Get(context.Background(), KeyRememberedUserName)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.Set(context.Background(), KeyRememberedUserName, "Rina"))
}

func TestDefaultProfilePath(t *testing.T) {
	assert.Equal(t, "profile.yaml", filepath.Base(DefaultProfilePath()))
}
