// Package session holds the client-side authentication session: the bearer
// token issued by the backend and the username it was issued to.
//
// The two values are always written and cleared together. A Store never
// exposes a session with only one of them set.
package session

import "errors"

var (
	// ErrPartialSession is returned by Set when the token or username is empty.
	ErrPartialSession = errors.New("session requires both token and username")
	// ErrClosed is returned when writing to a store after Close.
	ErrClosed = errors.New("session store closed")
)

// Session is the client-held pairing of a bearer token and its username.
// The zero value is the unauthenticated session.
type Session struct {
	Token    string `json:"token,omitempty"`
	Username string `json:"username,omitempty"`
}

// Authenticated reports whether the session carries a token.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Store abstracts the durable session holder so that it can be backed by a
// persistent profile or by memory in tests.
type Store interface {
	// Get returns the current session, or the zero Session if none.
	Get() Session
	// Set atomically stores both fields, replacing any prior session.
	Set(token, username string) error
	// Clear atomically removes both fields. Clearing an empty store is a no-op.
	Clear() error
	// IsAuthenticated reports whether a token is present.
	IsAuthenticated() bool
}

func checkComplete(token, username string) error {
	if token == "" || username == "" {
		return ErrPartialSession
	}
	return nil
}
