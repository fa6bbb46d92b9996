package filestore

import (
	"context"
	"sort"
	"sync"
)

// FlushFunc pushes a batch of mutated keys to whatever cache layer fronts the
// store (a CDN purge, typically).
type FlushFunc func(ctx context.Context, keys []string) error

// Batcher coalesces mutated keys between flushes. One Batcher is constructed
// per storage backend by whoever constructs the backend and is injected where
// needed; there is no process-wide registry.
type Batcher struct {
	// mu protects pending.
	mu sync.Mutex
	// pending is the set of keys mutated since the last successful flush.
	pending map[string]struct{}
	// flush pushes a batch downstream.
	flush FlushFunc
}

// NewBatcher creates a Batcher that flushes through the provided function.
func NewBatcher(flush FlushFunc) *Batcher {
	return &Batcher{
		pending: make(map[string]struct{}),
		flush:   flush,
	}
}

// Add records mutated keys for the next flush.
func (b *Batcher) Add(keys ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range keys {
		b.pending[key] = struct{}{}
	}
}

// Pending returns the number of keys awaiting a flush.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.pending)
}

// Flush pushes the pending batch downstream. The batch is cleared only after
// the flush function succeeds, so a failed flush retries the same keys.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()

	keys := make([]string, 0, len(b.pending))
	for key := range b.pending {
		keys = append(keys, key)
	}

	b.mu.Unlock()

	if len(keys) == 0 {
		return nil
	}

	sort.Strings(keys)

	if err := b.flush(ctx, keys); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range keys {
		delete(b.pending, key)
	}

	return nil
}

// invalidatingStore records every effective mutation into a Batcher.
type invalidatingStore struct {
	FileStore

	// batcher receives keys of effective writes and deletes.
	batcher *Batcher
}

// WithInvalidation wraps a store so that every effective write or delete is
// recorded in the batcher. Skipped no-overwrite puts are not recorded.
func WithInvalidation(inner FileStore, batcher *Batcher) FileStore {
	return &invalidatingStore{
		FileStore: inner,
		batcher:   batcher,
	}
}

// Put delegates and records the key when the write actually happened.
func (s *invalidatingStore) Put(ctx context.Context, key string, data []byte, overwrite bool) (bool, error) {
	wrote, err := s.FileStore.Put(ctx, key, data, overwrite)
	if err == nil && wrote {
		s.batcher.Add(key)
	}

	return wrote, err
}

// Delete delegates and records the prefix on success.
func (s *invalidatingStore) Delete(ctx context.Context, keyPrefix string) error {
	err := s.FileStore.Delete(ctx, keyPrefix)
	if err == nil {
		s.batcher.Add(keyPrefix)
	}

	return err
}
