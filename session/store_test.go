package session

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/sessiongate/internal/util"
	"github.com/jmcleod/sessiongate/storage"
	bboltstorage "github.com/jmcleod/sessiongate/storage/bbolt"
	"github.com/jmcleod/sessiongate/storage/memory"
)

// storeTests runs the common suite against any Store implementation.
func storeTests(t *testing.T, store Store) {
	t.Helper()

	t.Run("EmptyByDefault", func(t *testing.T) {
		if store.IsAuthenticated() {
			t.Fatal("expected fresh store to be unauthenticated")
		}
		if got := store.Get(); got != (Session{}) {
			t.Fatalf("expected empty session, got %+v", got)
		}
	})

	t.Run("SetAndGet", func(t *testing.T) {
		if err := store.Set("T1", "ivan"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got := store.Get()
		if got.Token != "T1" || got.Username != "ivan" {
			t.Fatalf("got %+v, want {T1 ivan}", got)
		}
		if !store.IsAuthenticated() {
			t.Fatal("expected authenticated after Set")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		if err := store.Set("T2", "billy"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got := store.Get()
		if got.Token != "T2" || got.Username != "billy" {
			t.Fatalf("got %+v, want {T2 billy}", got)
		}
	})

	t.Run("RejectPartial", func(t *testing.T) {
		if err := store.Set("", "ivan"); !errors.Is(err, ErrPartialSession) {
			t.Fatalf("expected ErrPartialSession, got %v", err)
		}
		if err := store.Set("T3", ""); !errors.Is(err, ErrPartialSession) {
			t.Fatalf("expected ErrPartialSession, got %v", err)
		}
		if got := store.Get(); got.Token != "T2" {
			t.Fatalf("partial Set must not change the session, got %+v", got)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		if got := store.Get(); got != (Session{}) {
			t.Fatalf("expected empty session, got %+v", got)
		}
	})

	t.Run("ClearIdempotent", func(t *testing.T) {
		if err := store.Clear(); err != nil {
			t.Fatalf("second Clear failed: %v", err)
		}
		if store.IsAuthenticated() {
			t.Fatal("expected unauthenticated")
		}
	})
}

func TestMemoryStore(t *testing.T) {
	storeTests(t, NewMemoryStore())
}

func newPersistent(t *testing.T, repo storage.Repository, key []byte) *PersistentStore {
	t.Helper()
	s, err := NewPersistentStore(repo, key)
	require.NoError(t, err)
	require.NoError(t, s.Init())
	t.Cleanup(s.Close)
	return s
}

func TestPersistentStore(t *testing.T) {
	key, err := util.NewKey()
	require.NoError(t, err)
	storeTests(t, newPersistent(t, memory.NewRepository(), key))
}

func TestPersistentStoreRejectsBadKey(t *testing.T) {
	_, err := NewPersistentStore(memory.NewRepository(), []byte("short"))
	assert.Error(t, err)
}

func TestPersistentStoreSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.db")
	key, err := util.NewKey()
	require.NoError(t, err)

	repo, err := bboltstorage.NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	first, err := NewPersistentStore(repo, key)
	require.NoError(t, err)
	require.NoError(t, first.Init())
	require.NoError(t, first.Set("T1", "ivan"))
	first.Close()
	require.NoError(t, repo.Close())

	repo, err = bboltstorage.NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	defer repo.Close()
	second := newPersistent(t, repo, key)

	assert.Equal(t, Session{Token: "T1", Username: "ivan"}, second.Get())
	assert.True(t, second.IsAuthenticated())

	require.NoError(t, second.Clear())
	third := newPersistent(t, repo, key)
	assert.False(t, third.IsAuthenticated())
}

func TestPersistentStoreValuesSealedAtRest(t *testing.T) {
	repo := memory.NewRepository()
	key, _ := util.NewKey()
	s := newPersistent(t, repo, key)
	require.NoError(t, s.Set("secret-token", "ivan"))

	env, err := repo.Get(profileBucket, slotRecordType, tokenSlot)
	require.NoError(t, err)
	assert.NotContains(t, string(env.Ciphertext), "secret-token")
}

func TestPersistentStoreRepairsStraySlot(t *testing.T) {
	repo := memory.NewRepository()
	key, _ := util.NewKey()

	env, err := storage.SealRecord(key, []byte("orphan"), slotAAD(tokenSlot))
	require.NoError(t, err)
	require.NoError(t, repo.Put(profileBucket, slotRecordType, tokenSlot, env))

	s := newPersistent(t, repo, key)
	assert.Equal(t, Session{}, s.Get())

	_, err = repo.Get(profileBucket, slotRecordType, tokenSlot)
	assert.True(t, storage.IsNotFound(err), "stray token slot should be removed")
}

func TestPersistentStoreWrongKeyReadsEmpty(t *testing.T) {
	repo := memory.NewRepository()
	key, _ := util.NewKey()
	s := newPersistent(t, repo, key)
	require.NoError(t, s.Set("T1", "ivan"))

	otherKey, _ := util.NewKey()
	other := newPersistent(t, repo, otherKey)
	assert.False(t, other.IsAuthenticated())
}

func TestPersistentStoreClosed(t *testing.T) {
	key, _ := util.NewKey()
	s, err := NewPersistentStore(memory.NewRepository(), key)
	require.NoError(t, err)
	require.NoError(t, s.Init())
	s.Close()
	s.Close()

	assert.ErrorIs(t, s.Set("T1", "ivan"), ErrClosed)
	assert.NoError(t, s.Clear())
}

type failingRepo struct {
	storage.Repository
}

func (failingRepo) Batch(string, func(storage.BatchTx) error) error {
	return errors.New("disk full")
}

func TestPersistentStoreClearEmptiesMemoryOnFailure(t *testing.T) {
	key, _ := util.NewKey()
	repo := memory.NewRepository()
	s := newPersistent(t, repo, key)
	require.NoError(t, s.Set("T1", "ivan"))

	s.repo = failingRepo{Repository: repo}
	err := s.Clear()
	assert.Error(t, err)
	assert.False(t, s.IsAuthenticated(), "memory must be cleared even when persistence fails")
}
