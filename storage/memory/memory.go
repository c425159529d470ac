// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jmcleod/sessiongate/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for tests and for embedding hosts that do not need durability.
type Repository struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*storage.Envelope
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{buckets: make(map[string]map[string]*storage.Envelope)}
}

func recordKey(recordType, recordID string) string {
	return recordType + ":" + recordID
}

func (r *Repository) Put(bucket, recordType, recordID string, envelope *storage.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(bucket, recordType, recordID, envelope)
	return nil
}

func (r *Repository) putLocked(bucket, recordType, recordID string, envelope *storage.Envelope) {
	b, ok := r.buckets[bucket]
	if !ok {
		b = make(map[string]*storage.Envelope)
		r.buckets[bucket] = b
	}
	b[recordKey(recordType, recordID)] = envelope.Clone()
}

func (r *Repository) Get(bucket, recordType, recordID string) (*storage.Envelope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("%s: %w", bucket, storage.ErrBucketNotFound)
	}
	env, ok := b[recordKey(recordType, recordID)]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
	}
	return env.Clone(), nil
}

func (r *Repository) Delete(bucket, recordType, recordID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(bucket, recordType, recordID)
}

func (r *Repository) deleteLocked(bucket, recordType, recordID string) error {
	b, ok := r.buckets[bucket]
	if !ok {
		return fmt.Errorf("%s: %w", bucket, storage.ErrBucketNotFound)
	}
	k := recordKey(recordType, recordID)
	if _, ok := b[k]; !ok {
		return fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
	}
	delete(b, k)
	return nil
}

func (r *Repository) List(bucket, recordType string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	prefix := recordType + ":"
	for k := range r.buckets[bucket] {
		if id, ok := strings.CutPrefix(k, prefix); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Batch executes fn under the write lock. On error the bucket is restored
// to its state before the batch began.
func (r *Repository) Batch(bucket string, fn func(tx storage.BatchTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.snapshot(bucket)
	if err := fn(&batchTx{repo: r, bucket: bucket}); err != nil {
		r.restore(bucket, snapshot)
		return err
	}
	return nil
}

func (r *Repository) snapshot(bucket string) map[string]*storage.Envelope {
	original, ok := r.buckets[bucket]
	if !ok {
		return nil
	}
	cp := make(map[string]*storage.Envelope, len(original))
	for k, v := range original {
		cp[k] = v.Clone()
	}
	return cp
}

func (r *Repository) restore(bucket string, snapshot map[string]*storage.Envelope) {
	if snapshot == nil {
		delete(r.buckets, bucket)
		return
	}
	r.buckets[bucket] = snapshot
}

type batchTx struct {
	repo   *Repository
	bucket string
}

func (tx *batchTx) Put(recordType, recordID string, envelope *storage.Envelope) error {
	tx.repo.putLocked(tx.bucket, recordType, recordID, envelope)
	return nil
}

func (tx *batchTx) Delete(recordType, recordID string) error {
	return tx.repo.deleteLocked(tx.bucket, recordType, recordID)
}
