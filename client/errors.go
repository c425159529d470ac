package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed call.
type Kind int

const (
	// KindValidation is local, pre-network input rejection. Client never
	// produces it; flows use it when validation stops a submit.
	KindValidation Kind = iota + 1
	// KindNetwork means no response reached the client.
	KindNetwork
	// KindServer means the backend answered with a non-2xx status other than 401.
	KindServer
	// KindAuthRejected means the backend answered 401.
	KindAuthRejected
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindAuthRejected:
		return "auth_rejected"
	default:
		return "unknown"
	}
}

var (
	ErrValidation   = errors.New("validation failed")
	ErrNetwork      = errors.New("network error")
	ErrServer       = errors.New("server error")
	ErrAuthRejected = errors.New("authentication rejected")
)

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNetwork:
		return ErrNetwork
	case KindServer:
		return ErrServer
	case KindAuthRejected:
		return ErrAuthRejected
	default:
		return nil
	}
}

// Error is the failure half of a call outcome. Status and Detail are set
// when the backend responded; Err holds the transport error for KindNetwork.
type Error struct {
	Op     string
	Kind   Kind
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.sentinel().Error()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (%d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause, so
// errors.Is(err, ErrAuthRejected) and errors.Is(err, context.Canceled) both work.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the Kind of err, or 0 if err is nil or not a client error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

// Message returns a single human-readable line suitable for an error banner.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ce *Error
	if !errors.As(err, &ce) {
		return err.Error()
	}
	switch {
	case ce.Detail != "":
		return ce.Detail
	case ce.Kind == KindNetwork:
		return "Unable to reach the server. Check your connection and try again."
	case ce.Kind == KindAuthRejected:
		return "Your session is no longer valid. Please log in again."
	default:
		return statusMessage(ce.Status)
	}
}

func statusMessage(status int) string {
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("request failed with status %d (%s)", status, text)
	}
	return fmt.Sprintf("request failed with status %d", status)
}
