// Package credential validates username/password input before it is sent to
// the backend and holds credentials for the short time a flow needs them.
package credential

import (
	"errors"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrSealedConsumed is returned by Sealed.Open after the credentials were destroyed.
var ErrSealedConsumed = errors.New("sealed credentials already destroyed")

// Credentials is a username/password pair. It is transient: callers must not
// persist it, and flows drop it as soon as the submit action completes.
type Credentials struct {
	Username string
	Password string
}

// Sealed keeps credentials encrypted in memory while a flow waits to use
// them, for example across the delay before an automatic login.
type Sealed struct {
	mu        sync.Mutex
	username  string
	password  *memguard.Enclave
	destroyed bool
}

// Seal moves the password into a memguard enclave.
func Seal(c Credentials) *Sealed {
	s := &Sealed{username: c.Username}
	if c.Password != "" {
		// NewEnclave wipes the buffer it is given.
		s.password = memguard.NewEnclave([]byte(c.Password))
	}
	return s
}

// Username returns the sealed username. Usernames are not secret.
func (s *Sealed) Username() string {
	return s.username
}

// Open decrypts the credentials. The caller should drop the result as soon
// as the request it was opened for has been issued.
func (s *Sealed) Open() (Credentials, error) {
	if s == nil {
		return Credentials{}, ErrSealedConsumed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return Credentials{}, ErrSealedConsumed
	}
	if s.password == nil {
		return Credentials{Username: s.username}, nil
	}
	lb, err := s.password.Open()
	if err != nil {
		return Credentials{}, err
	}
	defer lb.Destroy()
	return Credentials{Username: s.username, Password: strings.Clone(lb.String())}, nil
}

// Destroy drops the enclave. Open fails afterwards.
func (s *Sealed) Destroy() {
	if s != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.password = nil
		s.destroyed = true
	}
}
