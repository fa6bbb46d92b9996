package lock

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/berthd/berth/internal/domain/release"
	"github.com/berthd/berth/internal/filestore"
	"github.com/berthd/berth/internal/logger"
)

// Manager serializes mutating operations per application through an advisory
// lock key in the file store. Acquisition is non-blocking: a held lock causes
// an immediate empty result, pushing retry responsibility to the caller.
type Manager struct {
	// store holds the lock keys.
	store filestore.FileStore
}

// NewManager creates a lock manager on top of the provided store.
func NewManager(store filestore.FileStore) *Manager {
	return &Manager{store: store}
}

// Key returns the lock key for an application.
func Key(app *release.App) string {
	return app.Slug + "/.lock"
}

// Request attempts to acquire the application's lock. It returns the freshly
// generated token on success and an empty string when the lock is already
// held. The write is a no-overwrite put, which every backend implements as an
// atomic conditional write, so two concurrent requests cannot both succeed.
func (m *Manager) Request(ctx context.Context, app *release.App) (string, error) {
	token := uuid.NewString()

	wrote, err := m.store.Put(ctx, Key(app), []byte(token), false)
	if err != nil {
		return "", fmt.Errorf("acquire lock for %s: %w", app.Slug, err)
	}

	if !wrote {
		logger.DebugKV(ctx, "Lock already held", "app", app.Slug)
		return "", nil
	}

	return token, nil
}

// Current returns the token currently holding the application's lock, or an
// empty string when the lock is free.
func (m *Manager) Current(ctx context.Context, app *release.App) (string, error) {
	data, err := m.store.Get(ctx, Key(app))
	if err != nil {
		return "", fmt.Errorf("read lock for %s: %w", app.Slug, err)
	}

	return string(data), nil
}

// Release frees the lock only when the stored token still equals the caller's
// token, so a stale caller cannot release a lock acquired by someone else.
// The read-compare-delete here is not atomic; the window is narrow and
// harmless because tokens are single-use and never reissued.
func (m *Manager) Release(ctx context.Context, app *release.App, token string) error {
	current, err := m.Current(ctx, app)
	if err != nil {
		return err
	}

	if current == "" || current != token {
		logger.DebugKV(ctx, "Skipping release of lock owned elsewhere", "app", app.Slug)
		return nil
	}

	if err = m.store.Delete(ctx, Key(app)); err != nil {
		return fmt.Errorf("release lock for %s: %w", app.Slug, err)
	}

	return nil
}

// Holds reports whether the caller's token is the live lock for the app.
func (m *Manager) Holds(ctx context.Context, app *release.App, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	current, err := m.Current(ctx, app)
	if err != nil {
		return false, err
	}

	return current == token, nil
}

// WithLock runs fn under the application's lock. It returns false immediately
// when acquisition fails; otherwise it runs fn with the token and releases
// the lock on both normal return and panic.
func (m *Manager) WithLock(ctx context.Context, app *release.App, fn func(token string) error) (bool, error) {
	token, err := m.Request(ctx, app)
	if err != nil {
		return false, err
	}

	if token == "" {
		return false, nil
	}

	defer func() {
		if releaseErr := m.Release(ctx, app, token); releaseErr != nil {
			logger.ErrorKV(ctx, "Failed to release lock", "app", app.Slug, "error", releaseErr)
		}
	}()

	if err = fn(token); err != nil {
		return true, err
	}

	return true, nil
}
