// Package profile opens the on-disk profile that holds the persisted
// session: a bbolt database plus the key its slots are sealed with.
package profile

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/jmcleod/sessiongate/internal/util"
	"github.com/jmcleod/sessiongate/internal/xdg"
	"github.com/jmcleod/sessiongate/session"
	bboltstorage "github.com/jmcleod/sessiongate/storage/bbolt"
)

const (
	KeyFileName      = "profile.key"
	DatabaseFileName = "session.db"
)

// Profile is an open profile directory.
type Profile struct {
	Dir   string
	Store *session.PersistentStore
	repo  *bboltstorage.Store
}

// Open opens the profile in dir, creating it on first use. An empty dir
// means the XDG data directory. The persisted session is loaded before
// Open returns.
func Open(dir string, logger *slog.Logger) (*Profile, error) {
	if dir == "" {
		dir = xdg.DataDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := xdg.EnsureDir(dir); err != nil {
		return nil, oops.Code("PROFILE_OPEN_FAILED").With("dir", dir).Wrap(err)
	}

	key, err := LoadOrCreateKey(filepath.Join(dir, KeyFileName))
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(key)

	repo, err := bboltstorage.NewRepositoryFromFile(filepath.Join(dir, DatabaseFileName), nil)
	if err != nil {
		return nil, oops.Code("PROFILE_OPEN_FAILED").With("dir", dir).Wrap(err)
	}
	store, err := session.NewPersistentStore(repo, key, session.WithLogger(logger))
	if err != nil {
		repo.Close()
		return nil, oops.Code("PROFILE_OPEN_FAILED").With("dir", dir).Wrap(err)
	}
	if err := store.Init(); err != nil {
		store.Close()
		repo.Close()
		return nil, oops.Code("PROFILE_OPEN_FAILED").With("dir", dir).Wrap(err)
	}
	return &Profile{Dir: dir, Store: store, repo: repo}, nil
}

// Close wipes the key and closes the database.
func (p *Profile) Close() error {
	p.Store.Close()
	if err := p.repo.Close(); err != nil {
		return oops.Code("PROFILE_CLOSE_FAILED").With("dir", p.Dir).Wrap(err)
	}
	return nil
}

// LoadOrCreateKey reads a 32-byte key from path, or writes a fresh random
// one with 0600 permissions if the file does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(key) != util.KeySize {
			util.WipeBytes(key)
			return nil, oops.Code("PROFILE_KEY_INVALID").With("path", path).
				Errorf("key file must hold %d bytes", util.KeySize)
		}
		return key, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, oops.Code("PROFILE_KEY_UNREADABLE").With("path", path).Wrap(err)
	}

	key, err = util.NewKey()
	if err != nil {
		return nil, oops.Code("PROFILE_KEY_UNREADABLE").With("path", path).Wrap(err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		util.WipeBytes(key)
		if errors.Is(err, fs.ErrExist) {
			// Lost a race with another process; use its key.
			return LoadOrCreateKey(path)
		}
		return nil, oops.Code("PROFILE_KEY_UNREADABLE").With("path", path).Wrap(err)
	}
	_, werr := f.Write(key)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		util.WipeBytes(key)
		os.Remove(path)
		return nil, oops.Code("PROFILE_KEY_UNREADABLE").With("path", path).Wrap(err)
	}
	return key, nil
}
