package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/sessiongate/session"
)

func TestOpenPersistsSessionAcrossRestarts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profile")

	p, err := Open(dir, nil)
	require.NoError(t, err)
	assert.False(t, p.Store.IsAuthenticated())
	require.NoError(t, p.Store.Set("T1", "ivan"))
	require.NoError(t, p.Close())

	info, err := os.Stat(filepath.Join(dir, KeyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	p, err = Open(dir, nil)
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, session.Session{Token: "T1", Username: "ivan"}, p.Store.Get())

	require.NoError(t, p.Store.Clear())
	assert.False(t, p.Store.IsAuthenticated())
}

func TestOpenDefaultsToXDGDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	p, err := Open("", nil)
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, filepath.Join(os.Getenv("XDG_DATA_HOME"), "sessiongate"), p.Dir)
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), KeyFileName)

	first, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Len(t, first, 32)

	second, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadOrCreateKeyRejectsWrongSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), KeyFileName)
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))

	_, err := LoadOrCreateKey(path)
	require.Error(t, err)
	oerr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, "PROFILE_KEY_INVALID", oerr.Code())
}

func TestReplacedKeyReadsAsNoSession(t *testing.T) {
	dir := t.TempDir()
	p, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, p.Store.Set("T1", "ivan"))
	require.NoError(t, p.Close())

	require.NoError(t, os.Remove(filepath.Join(dir, KeyFileName)))

	p, err = Open(dir, nil)
	require.NoError(t, err)
	defer p.Close()
	assert.False(t, p.Store.IsAuthenticated())
}
