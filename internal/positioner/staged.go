package positioner

import (
	"context"
	"errors"
	"fmt"

	"github.com/berthd/berth/internal/cipher"
	"github.com/berthd/berth/internal/domain/release"
)

// ErrStagedNotFound indicates a staged artifact absent from the quarantine prefix.
var ErrStagedNotFound = errors.New("staged artifact not found")

// SaveStagedFile encrypts and stores one staged artifact under the upload's
// quarantine prefix. Staged files are keyed by the opaque save string, so no
// application lock is taken.
func (p *Positioner) SaveStagedFile(ctx context.Context, app *release.App, staged *release.StagedUpload, fileName string, data []byte) error {
	sealed, err := cipher.Encrypt(staged.CipherPassword, data)
	if err != nil {
		return fmt.Errorf("encrypt staged artifact %s: %w", fileName, err)
	}

	if _, err = p.store.Put(ctx, tempKey(app, staged.SaveString, fileName), sealed, true); err != nil {
		return fmt.Errorf("save staged artifact %s: %w", fileName, err)
	}

	return nil
}

// GetStagedFile fetches and decrypts one staged artifact. A missing artifact
// or a failed decryption is an error; no fallback plaintext is ever produced.
func (p *Positioner) GetStagedFile(ctx context.Context, app *release.App, staged *release.StagedUpload, fileName string) ([]byte, error) {
	key := tempKey(app, staged.SaveString, fileName)

	exists, err := p.store.Has(ctx, key)
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStagedNotFound, fileName)
	}

	sealed, err := p.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch staged artifact %s: %w", fileName, err)
	}

	return cipher.Decrypt(staged.CipherPassword, sealed)
}

// CleanupStaged removes everything under the staged upload's key prefix,
// whether it was promoted or discarded.
func (p *Positioner) CleanupStaged(ctx context.Context, app *release.App, saveString string) error {
	if err := p.store.Delete(ctx, tempPrefix(app, saveString)); err != nil {
		return fmt.Errorf("clean up staged upload %s: %w", saveString, err)
	}

	return nil
}
