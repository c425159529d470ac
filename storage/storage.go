// Package storage provides the durable slot storage used to keep client-side
// state (the session token and username) across process restarts.
//
// Records live in named buckets and are addressed by a record type and id.
// Values are carried as sealed Envelopes so that nothing sensitive is written
// to disk in the clear.
package storage

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrBucketNotFound is returned when a bucket has never been written.
	ErrBucketNotFound = errors.New("bucket not found")
)

// BatchTx provides writes within an atomic transaction scoped to one bucket.
type BatchTx interface {
	Put(recordType, recordID string, envelope *Envelope) error
	Delete(recordType, recordID string) error
}

// Repository defines the interface for sealed record storage.
type Repository interface {
	Put(bucket, recordType, recordID string, envelope *Envelope) error
	Get(bucket, recordType, recordID string) (*Envelope, error)
	Delete(bucket, recordType, recordID string) error
	List(bucket, recordType string) ([]string, error)
	// Batch runs fn atomically. If fn returns an error no write is applied.
	Batch(bucket string, fn func(tx BatchTx) error) error
}

// IsNotFound reports whether err means the record or its bucket is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrBucketNotFound)
}
