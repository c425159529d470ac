package storage

import (
	"fmt"
	"time"

	"github.com/jmcleod/sessiongate/internal/util"
)

const (
	envelopeVersion = 1
	schemeAESGCM    = "aes256gcm"
)

// Envelope is a sealed record containing AES-256-GCM encrypted data.
type Envelope struct {
	Ver        int       `json:"ver"`
	Scheme     string    `json:"scheme"`
	Nonce      []byte    `json:"nonce"`
	Ciphertext []byte    `json:"ciphertext"`
	SealedAt   time.Time `json:"sealed_at,omitzero"`
}

// Clone returns a deep copy of e.
func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}
	return &Envelope{
		Ver:        e.Ver,
		Scheme:     e.Scheme,
		Nonce:      append([]byte(nil), e.Nonce...),
		Ciphertext: append([]byte(nil), e.Ciphertext...),
		SealedAt:   e.SealedAt,
	}
}

// SealRecord encrypts plaintext into an Envelope bound to aad.
func SealRecord(key, plaintext, aad []byte) (*Envelope, error) {
	sealed, err := util.Seal(key, plaintext, aad)
	if err != nil {
		return nil, err
	}
	// util.Seal returns nonce || ciphertext with a 12-byte GCM nonce.
	return &Envelope{
		Ver:        envelopeVersion,
		Scheme:     schemeAESGCM,
		Nonce:      sealed[:12],
		Ciphertext: sealed[12:],
		SealedAt:   time.Now().UTC(),
	}, nil
}

// OpenRecord decrypts an Envelope sealed with the same key and aad.
func OpenRecord(key []byte, env *Envelope, aad []byte) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("nil envelope: %w", ErrNotFound)
	}
	if env.Ver != envelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version: %d", env.Ver)
	}
	if env.Scheme != schemeAESGCM {
		return nil, fmt.Errorf("unsupported envelope scheme: %s", env.Scheme)
	}
	full := make([]byte, 0, len(env.Nonce)+len(env.Ciphertext))
	full = append(full, env.Nonce...)
	full = append(full, env.Ciphertext...)
	return util.Open(key, full, aad)
}
