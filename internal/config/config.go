package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StorageBackend selects the file store implementation.
type StorageBackend string

const (
	// BackendMemory keeps objects in process memory. Test and demo use only.
	BackendMemory StorageBackend = "memory"
	// BackendFS stores objects under a local directory.
	BackendFS StorageBackend = "fs"
	// BackendS3 stores objects in an S3 bucket.
	BackendS3 StorageBackend = "s3"
)

// StorageConfig selects and parameterizes the file store.
type StorageConfig struct {
	// Backend is one of memory, fs, s3.
	Backend StorageBackend `yaml:"backend"`
	// Root is the local directory for the fs backend.
	Root string `yaml:"root"`
	// Bucket is the S3 bucket name.
	Bucket string `yaml:"bucket"`
	// Region is the S3 bucket region.
	Region string `yaml:"region"`
	// Prefix is an optional key prefix applied to every S3 object.
	Prefix string `yaml:"prefix"`
	// PublicBaseURL is the download origin clients reach artifacts through,
	// typically a CDN in front of the bucket.
	PublicBaseURL string `yaml:"public_base_url"`
}

// SigningConfig parameterizes GPG signing of Linux repositories.
type SigningConfig struct {
	// PrivateKeyPath points to an armored GPG private key. Empty disables
	// Linux repository signing.
	PrivateKeyPath string `yaml:"private_key_path"`
}

// Config holds the positioning engine's settings.
type Config struct {
	// Storage selects the file store.
	Storage StorageConfig `yaml:"storage"`
	// Signing configures Linux repository signing.
	Signing SigningConfig `yaml:"signing"`
	// ScratchDir is where Linux repo working trees are created. Empty means
	// the system temp directory.
	ScratchDir string `yaml:"scratch_dir"`
	// LogLevel is the zap level name (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for engine settings.
	DefaultConfigFilename = "berth-settings.yaml"

	// DefaultLogLevel is used when the settings omit one.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errBackendRequired is returned when no storage backend is named.
	errBackendRequired = errors.New("storage backend must be provided")
	// errRootRequired is returned when the fs backend has no root directory.
	errRootRequired = errors.New("storage root must be provided for the fs backend")
	// errBucketRequired is returned when the s3 backend has no bucket.
	errBucketRequired = errors.New("storage bucket must be provided for the s3 backend")
	// errBaseURLRequired is returned when no public base URL is set.
	errBaseURLRequired = errors.New("public base URL must be provided")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and formatting,
// filling in defaults where the settings omit optional ones.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	switch cfg.Storage.Backend {
	case BackendMemory:
	case BackendFS:
		if cfg.Storage.Root == "" {
			return errRootRequired
		}
	case BackendS3:
		if cfg.Storage.Bucket == "" {
			return errBucketRequired
		}
	case "":
		return errBackendRequired
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.Storage.PublicBaseURL == "" {
		return errBaseURLRequired
	}

	if _, err := url.ParseRequestURI(cfg.Storage.PublicBaseURL); err != nil {
		return fmt.Errorf("invalid public base URL: %w", err)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	return nil
}
