package session

import "sync"

// MemoryStore is an in-memory Store. The session is lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	current Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *MemoryStore) Set(token, username string) error {
	if err := checkComplete(token, username); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = Session{Token: token, Username: username}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	s.current = Session{}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) IsAuthenticated() bool {
	return s.Get().Authenticated()
}
