//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/berthd/berth/internal/config"
	"github.com/berthd/berth/internal/filestore"
	"github.com/berthd/berth/internal/lock"
	"github.com/berthd/berth/internal/logger"
	"github.com/berthd/berth/internal/positioner"
	"github.com/berthd/berth/internal/signing"
)

// Runtime bundles the wired engine components one command invocation works
// with. Construct with NewRuntime, release with Close.
type Runtime struct {
	// Config is the loaded and validated configuration.
	Config *config.Config
	// Store is the configured file store, wrapped for invalidation tracking.
	Store filestore.FileStore
	// Invalidations coalesces mutated keys for the cache layer.
	Invalidations *filestore.Batcher
	// Locks serializes mutations per application.
	Locks *lock.Manager
	// Engine positions artifacts and regenerates manifests.
	Engine *positioner.Positioner

	// signer is owned by the runtime and torn down on Close. Nil when
	// signing is not configured.
	signer *signing.GPG
}

// NewRuntime loads configuration from path and wires the store, lock manager,
// signer and positioning engine.
func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	batcher := filestore.NewBatcher(func(ctx context.Context, keys []string) error {
		logger.InfoKV(ctx, "Invalidating cached paths", "count", len(keys))
		return nil
	})
	store = filestore.WithInvalidation(store, batcher)

	runtime := &Runtime{
		Config:        cfg,
		Store:         store,
		Invalidations: batcher,
		Locks:         lock.NewManager(store),
	}

	var signer signing.Signer

	if cfg.Signing.PrivateKeyPath != "" {
		key, err := os.ReadFile(cfg.Signing.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read signing key: %w", err)
		}

		runtime.signer, err = signing.NewGPG(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("initialize signer: %w", err)
		}

		signer = runtime.signer
	}

	runtime.Engine = positioner.New(&positioner.Options{
		Store:      store,
		Locks:      runtime.Locks,
		Signer:     signer,
		ScratchDir: cfg.ScratchDir,
	})

	return runtime, nil
}

// buildStore constructs the configured file store.
func buildStore(ctx context.Context, cfg *config.Config) (filestore.FileStore, error) {
	storage := cfg.Storage

	switch storage.Backend {
	case config.BackendMemory:
		return filestore.NewMemoryStore(storage.PublicBaseURL), nil
	case config.BackendFS:
		return filestore.NewFSStore(storage.Root, storage.PublicBaseURL), nil
	case config.BackendS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(storage.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws configuration: %w", err)
		}

		return filestore.NewS3Store(s3.NewFromConfig(awsCfg), storage.Bucket, storage.Prefix, storage.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", storage.Backend)
	}
}

// Flush pushes pending cache invalidations downstream.
func (r *Runtime) Flush(ctx context.Context) error {
	if err := r.Invalidations.Flush(ctx); err != nil {
		return fmt.Errorf("flush invalidations: %w", err)
	}

	return nil
}

// Close releases resources held by the runtime.
func (r *Runtime) Close() {
	if r.signer != nil {
		r.signer.Close()
	}
}
