package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("key not found")

// KV defines a synchronous key-value string store
type KV interface {
	// Get returns the value stored under key or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// BackendConfig selects and parameterizes a backend.
type BackendConfig struct {
	Backend     string
	Dir         string
	DatabaseURL string
	S3Bucket    string
	S3Prefix    string
	S3Region    string
}

// Open builds the KV backend named by cfg.Backend.
func Open(ctx context.Context, cfg BackendConfig) (KV, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendFile:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("file backend requires a storage directory")
		}
		return NewLocal(cfg.Dir), nil
	case BackendMemory:
		return NewMemory(), nil
	case BackendPostgres:
		pg, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case BackendS3:
		s3s, err := OpenS3(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region)
		if err != nil {
			return nil, err
		}
		return s3s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (use file, memory, postgres or s3)", cfg.Backend)
	}
}

// Describe returns a short human-readable location for logs and doctor output.
func Describe(cfg BackendConfig) string {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendFile:
		return "file:" + cfg.Dir
	case BackendMemory:
		return "memory"
	case BackendPostgres:
		return "postgres"
	case BackendS3:
		return "s3://" + cfg.S3Bucket + "/" + cfg.S3Prefix
	default:
		return cfg.Backend
	}
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}
