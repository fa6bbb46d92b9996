// Package config loads, validates and persists the engine's YAML settings:
// storage backend selection, signing material and logging.
package config
