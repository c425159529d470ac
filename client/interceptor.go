package client

import (
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/jmcleod/sessiongate/session"
)

// RequestInterceptor mutates an outbound request before it is sent.
// Returning an error aborts the call as a network failure.
type RequestInterceptor func(*http.Request) error

// BearerToken attaches "Authorization: Bearer <token>" when store holds a
// token. With no session the header is left out entirely.
func BearerToken(store session.Store) RequestInterceptor {
	return func(req *http.Request) error {
		if tok := store.Get().Token; tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		} else {
			req.Header.Del("Authorization")
		}
		return nil
	}
}

// RequestID tags each request with a fresh ULID in X-Request-ID.
func RequestID() RequestInterceptor {
	return func(req *http.Request) error {
		req.Header.Set("X-Request-ID", ulid.Make().String())
		return nil
	}
}

// UserAgent sets the User-Agent header.
func UserAgent(ua string) RequestInterceptor {
	return func(req *http.Request) error {
		req.Header.Set("User-Agent", ua)
		return nil
	}
}
