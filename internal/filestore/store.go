package filestore

import (
	"context"
	"strings"
)

// FileStore is the key/value + prefix-listing storage capability every engine
// component depends on. Keys are POSIX-style forward-slash paths.
type FileStore interface {
	// Put stores data at key. When overwrite is false and the key already
	// exists, nothing is written and Put returns false; callers rely on the
	// returned boolean to decide whether to cascade further work.
	Put(ctx context.Context, key string, data []byte, overwrite bool) (bool, error)

	// Get returns the bytes at key, or an empty slice when the key is absent.
	// Absence is never an error.
	Get(ctx context.Context, key string) ([]byte, error)

	// Has reports whether the key exists.
	Has(ctx context.Context, key string) (bool, error)

	// Delete removes the key and everything logically under the prefix.
	Delete(ctx context.Context, keyPrefix string) error

	// List returns all keys at or under the prefix.
	List(ctx context.Context, keyPrefix string) ([]string, error)

	// Size returns the byte size of the value at key, 0 when absent.
	Size(ctx context.Context, key string) (int64, error)

	// PublicBaseURL is the externally reachable origin prepended to keys to
	// form downloadable URLs.
	PublicBaseURL() string
}

// URL joins the store's public base URL with a key.
func URL(store FileStore, key string) string {
	return strings.TrimSuffix(store.PublicBaseURL(), "/") + "/" + strings.TrimPrefix(key, "/")
}

// underPrefix reports whether key equals the prefix or lives beneath it.
func underPrefix(key, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	return key == prefix || strings.HasPrefix(key, prefix+"/")
}
