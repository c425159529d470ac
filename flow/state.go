package flow

import "errors"

// State is a step in a flow's state machine.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateSubmitting
	StateRegistering
	// StateRegistered means registration succeeded and the automatic login
	// is scheduled but has not started.
	StateRegistered
	StateAutoLoggingIn
	StateSuccess
	StateFailed
	// StateFallbackFailed means registration succeeded but the automatic
	// login did not, so the user was sent to the login view.
	StateFallbackFailed
	// StateCancelled means the controller closed before a deferred step ran.
	StateCancelled
)

var stateNames = map[State]string{
	StateIdle:           "idle",
	StateValidating:     "validating",
	StateSubmitting:     "submitting",
	StateRegistering:    "registering",
	StateRegistered:     "registered",
	StateAutoLoggingIn:  "auto_logging_in",
	StateSuccess:        "success",
	StateFailed:         "failed",
	StateFallbackFailed: "fallback_failed",
	StateCancelled:      "cancelled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateFailed, StateFallbackFailed, StateCancelled:
		return true
	default:
		return false
	}
}

var (
	// ErrNoAccessToken is returned when the backend accepted a login but
	// issued no token. The session is left untouched.
	ErrNoAccessToken = errors.New("login succeeded without an access token")
	// ErrClosed is returned for work abandoned because the controller closed.
	ErrClosed = errors.New("flow controller closed")
)

const noTokenMessage = "Login failed: the server did not issue an access token."
