package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FSStore persists objects under a root directory on the local filesystem,
// mapping forward-slash keys to file paths.
type FSStore struct {
	// root is the directory all keys resolve under.
	root string
	// baseURL is returned by PublicBaseURL.
	baseURL string
}

// DefaultDirPermissions is used for directories created under the store root.
const DefaultDirPermissions = 0o755

// DefaultFilePermissions is used for objects written by the filesystem store.
const DefaultFilePermissions = 0o644

// errKeyEscapesRoot is returned for keys that resolve outside the store root.
var errKeyEscapesRoot = errors.New("key escapes store root")

// NewFSStore creates a filesystem store rooted at root.
func NewFSStore(root, baseURL string) *FSStore {
	return &FSStore{
		root:    filepath.Clean(root),
		baseURL: baseURL,
	}
}

// resolve maps a key to an absolute path below the root. Cleaning the key as
// a rooted path collapses any ".." traversal; the prefix check then rejects
// whatever would still land outside, without refusing filenames that merely
// contain dots.
func (s *FSStore) resolve(key string) (string, error) {
	cleaned := path.Clean("/" + key)
	if cleaned == "/" {
		return "", fmt.Errorf("%w: %s", errKeyEscapesRoot, key)
	}

	target := filepath.Join(s.root, filepath.FromSlash(cleaned))
	if !strings.HasPrefix(target, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", errKeyEscapesRoot, key)
	}

	return target, nil
}

// Put stores data at key. A no-overwrite put is atomic: the file is created
// with O_EXCL so a concurrent writer cannot slip between check and write.
func (s *FSStore) Put(_ context.Context, key string, data []byte, overwrite bool) (bool, error) {
	target, err := s.resolve(key)
	if err != nil {
		return false, err
	}

	if err = os.MkdirAll(filepath.Dir(target), DefaultDirPermissions); err != nil {
		return false, fmt.Errorf("make parent directory: %w", err)
	}

	if overwrite {
		if err = os.WriteFile(target, data, DefaultFilePermissions); err != nil {
			return false, fmt.Errorf("write %s: %w", key, err)
		}

		return true, nil
	}

	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, DefaultFilePermissions)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}

		return false, fmt.Errorf("create %s: %w", key, err)
	}

	if _, err = file.Write(data); err != nil {
		_ = file.Close()
		return false, fmt.Errorf("write %s: %w", key, err)
	}

	if err = file.Close(); err != nil {
		return false, fmt.Errorf("close %s: %w", key, err)
	}

	return true, nil
}

// Get returns the bytes at key, or an empty slice when absent.
func (s *FSStore) Get(_ context.Context, key string) ([]byte, error) {
	target, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []byte{}, nil
		}

		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	return data, nil
}

// Has reports whether the key exists as a regular file.
func (s *FSStore) Has(_ context.Context, key string) (bool, error) {
	target, err := s.resolve(key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("stat %s: %w", key, err)
	}

	return info.Mode().IsRegular(), nil
}

// Delete removes the key and everything under the prefix.
func (s *FSStore) Delete(_ context.Context, keyPrefix string) error {
	target, err := s.resolve(keyPrefix)
	if err != nil {
		return err
	}

	if err = os.RemoveAll(target); err != nil {
		return fmt.Errorf("delete %s: %w", keyPrefix, err)
	}

	return nil
}

// List returns sorted keys at or under the prefix.
func (s *FSStore) List(_ context.Context, keyPrefix string) ([]string, error) {
	target, err := s.resolve(keyPrefix)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w", keyPrefix, err)
	}

	prefix := strings.TrimSuffix(path.Clean("/"+keyPrefix), "/")[1:]
	if info.Mode().IsRegular() {
		return []string{prefix}, nil
	}

	var keys []string

	err = filepath.WalkDir(target, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(target, p)
		if relErr != nil {
			return relErr
		}

		keys = append(keys, prefix+"/"+filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", keyPrefix, err)
	}

	return keys, nil
}

// Size returns the file size, 0 when absent.
func (s *FSStore) Size(_ context.Context, key string) (int64, error) {
	target, err := s.resolve(key)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}

		return 0, fmt.Errorf("stat %s: %w", key, err)
	}

	return info.Size(), nil
}

// PublicBaseURL returns the configured public origin.
func (s *FSStore) PublicBaseURL() string {
	return s.baseURL
}
