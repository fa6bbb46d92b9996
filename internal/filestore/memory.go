package filestore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps all values in process memory. It backs tests and
// single-process setups.
type MemoryStore struct {
	// mu protects objects.
	mu sync.RWMutex
	// objects maps keys to stored bytes.
	objects map[string][]byte
	// baseURL is returned by PublicBaseURL.
	baseURL string
}

// NewMemoryStore creates an empty in-memory store with the given public base URL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		baseURL: baseURL,
	}
}

// Put stores data at key, honoring the overwrite-gated semantics.
// The existence check and the write happen under one lock, so a
// no-overwrite put is atomic.
func (s *MemoryStore) Put(_ context.Context, key string, data []byte, overwrite bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[key]; exists && !overwrite {
		return false, nil
	}

	s.objects[key] = append([]byte(nil), data...)

	return true, nil
}

// Get returns the bytes at key, or an empty slice when absent.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[key]
	if !ok {
		return []byte{}, nil
	}

	return append([]byte(nil), data...), nil
}

// Has reports whether the key exists.
func (s *MemoryStore) Has(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.objects[key]

	return ok, nil
}

// Delete removes the key and everything under the prefix.
func (s *MemoryStore) Delete(_ context.Context, keyPrefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.objects {
		if underPrefix(key, keyPrefix) {
			delete(s.objects, key)
		}
	}

	return nil
}

// List returns sorted keys at or under the prefix.
func (s *MemoryStore) List(_ context.Context, keyPrefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key := range s.objects {
		if underPrefix(key, keyPrefix) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	return keys, nil
}

// Size returns the stored byte count, 0 when absent.
func (s *MemoryStore) Size(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.objects[key])), nil
}

// PublicBaseURL returns the configured public origin.
func (s *MemoryStore) PublicBaseURL() string {
	return s.baseURL
}
