// Package uuid wraps google/uuid for identifiers minted by the reference backend.
package uuid

import "github.com/google/uuid"

// New returns a random (v4) UUID string.
func New() string {
	return uuid.NewString()
}
