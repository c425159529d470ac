package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmcleod/sessiongate/internal/util"
	"github.com/jmcleod/sessiongate/storage"
)

const (
	profileBucket  = "__profile"
	slotRecordType = "SLOT"
	tokenSlot      = "token"
	usernameSlot   = "username"
	slotAADPrefix  = "sessiongate:slot:"
)

// PersistentStore keeps the session in a storage.Repository, each slot sealed
// with AES-256-GCM under a profile key. The session survives process restarts
// for as long as the repository and key do.
//
// Reads are served from memory; Init loads the persisted value once at
// startup. Writes go to the repository first and then update memory, except
// Clear, which always empties memory even when persistence fails.
type PersistentStore struct {
	repo   storage.Repository
	key    []byte
	logger *slog.Logger

	mu      sync.RWMutex
	current Session
	closed  bool
}

var _ Store = (*PersistentStore)(nil)

// PersistentOption configures a PersistentStore.
type PersistentOption func(*PersistentStore)

// WithLogger sets the logger used for persistence failures.
func WithLogger(logger *slog.Logger) PersistentOption {
	return func(s *PersistentStore) {
		s.logger = logger
	}
}

// NewPersistentStore creates a store backed by repo. key must be 32 bytes; it
// is copied and wiped on Close. Call Init before first use.
func NewPersistentStore(repo storage.Repository, key []byte, opts ...PersistentOption) (*PersistentStore, error) {
	if len(key) != util.KeySize {
		return nil, fmt.Errorf("profile key must be exactly %d bytes, got %d", util.KeySize, len(key))
	}
	s := &PersistentStore{
		repo:   repo,
		key:    append([]byte(nil), key...),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session")
	return s, nil
}

// Init reads the persisted session. A stray slot left without its partner,
// or a slot that no longer decrypts, is treated as no session and both slots
// are removed.
func (s *PersistentStore) Init() error {
	token, tokErr := s.readSlot(tokenSlot)
	username, userErr := s.readSlot(usernameSlot)

	for _, err := range []error{tokErr, userErr} {
		if err != nil && !storage.IsNotFound(err) && !errors.Is(err, errUnreadableSlot) {
			return fmt.Errorf("reading persisted session: %w", err)
		}
	}

	if tokErr == nil && userErr == nil && checkComplete(token, username) == nil {
		s.mu.Lock()
		s.current = Session{Token: token, Username: username}
		s.mu.Unlock()
		return nil
	}

	bothAbsent := storage.IsNotFound(tokErr) && storage.IsNotFound(userErr)
	s.mu.Lock()
	s.current = Session{}
	s.mu.Unlock()
	if bothAbsent {
		return nil
	}
	s.logger.Warn("discarding incomplete persisted session")
	return s.deleteSlots()
}

// Close is the teardown hook. Persistence is passive so nothing is flushed;
// the key material is wiped and further writes fail with ErrClosed.
func (s *PersistentStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	util.WipeBytes(s.key)
}

func (s *PersistentStore) Get() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *PersistentStore) IsAuthenticated() bool {
	return s.Get().Authenticated()
}

func (s *PersistentStore) Set(token, username string) error {
	if err := checkComplete(token, username); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tokEnv, err := storage.SealRecord(s.key, []byte(token), slotAAD(tokenSlot))
	if err != nil {
		return fmt.Errorf("sealing token slot: %w", err)
	}
	userEnv, err := storage.SealRecord(s.key, []byte(username), slotAAD(usernameSlot))
	if err != nil {
		return fmt.Errorf("sealing username slot: %w", err)
	}
	err = s.repo.Batch(profileBucket, func(tx storage.BatchTx) error {
		if err := tx.Put(slotRecordType, tokenSlot, tokEnv); err != nil {
			return err
		}
		return tx.Put(slotRecordType, usernameSlot, userEnv)
	})
	if err != nil {
		s.logger.Error("persisting session failed", "error", err)
		return fmt.Errorf("persisting session: %w", err)
	}
	s.current = Session{Token: token, Username: username}
	return nil
}

func (s *PersistentStore) Clear() error {
	s.mu.Lock()
	s.current = Session{}
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil
	}
	return s.deleteSlots()
}

func (s *PersistentStore) deleteSlots() error {
	err := s.repo.Batch(profileBucket, func(tx storage.BatchTx) error {
		for _, slot := range []string{tokenSlot, usernameSlot} {
			if err := tx.Delete(slotRecordType, slot); err != nil && !storage.IsNotFound(err) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("clearing persisted session failed", "error", err)
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

var errUnreadableSlot = errors.New("unreadable session slot")

func (s *PersistentStore) readSlot(slot string) (string, error) {
	env, err := s.repo.Get(profileBucket, slotRecordType, slot)
	if err != nil {
		return "", err
	}
	data, err := storage.OpenRecord(s.key, env, slotAAD(slot))
	if err != nil {
		s.logger.Warn("session slot did not decrypt", "slot", slot, "error", err)
		return "", errUnreadableSlot
	}
	defer util.WipeBytes(data)
	return string(data), nil
}

func slotAAD(slot string) []byte {
	return []byte(slotAADPrefix + slot)
}
