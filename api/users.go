package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/jmcleod/sessiongate/internal/util"
	"github.com/jmcleod/sessiongate/storage"
)

const (
	usersBucket    = "users"
	userRecordType = "USER"
	userAADPrefix  = "sessiongate:user:"
)

var errUserExists = errors.New("user already exists")

type userRecord struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// userStore keeps sealed user records in a storage.Repository.
type userStore struct {
	repo storage.Repository
	key  []byte
}

func newUserStore(repo storage.Repository, key []byte) (*userStore, error) {
	if len(key) != util.KeySize {
		return nil, fmt.Errorf("user data key must be %d bytes, got %d", util.KeySize, len(key))
	}
	return &userStore{repo: repo, key: append([]byte(nil), key...)}, nil
}

// normalizeUsername folds visually identical names to one record id.
func normalizeUsername(username string) string {
	return norm.NFC.String(username)
}

func (s *userStore) get(username string) (*userRecord, error) {
	id := normalizeUsername(username)
	env, err := s.repo.Get(usersBucket, userRecordType, id)
	if err != nil {
		return nil, err
	}
	plaintext, err := storage.OpenRecord(s.key, env, []byte(userAADPrefix+id))
	if err != nil {
		return nil, fmt.Errorf("opening user record: %w", err)
	}
	defer util.WipeBytes(plaintext)
	var rec userRecord
	if err := json.Unmarshal(plaintext, &rec); err != nil {
		return nil, fmt.Errorf("decoding user record: %w", err)
	}
	return &rec, nil
}

// create inserts rec. Callers serialize calls; the existence check is not
// atomic with the write.
func (s *userStore) create(rec userRecord) error {
	id := normalizeUsername(rec.Username)
	if _, err := s.repo.Get(usersBucket, userRecordType, id); err == nil {
		return errUserExists
	} else if !storage.IsNotFound(err) {
		return err
	}
	plaintext, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding user record: %w", err)
	}
	defer util.WipeBytes(plaintext)
	env, err := storage.SealRecord(s.key, plaintext, []byte(userAADPrefix+id))
	if err != nil {
		return fmt.Errorf("sealing user record: %w", err)
	}
	return s.repo.Put(usersBucket, userRecordType, id, env)
}

func (s *userStore) count() (int, error) {
	ids, err := s.repo.List(usersBucket, userRecordType)
	if err != nil {
		if storage.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return len(ids), nil
}
