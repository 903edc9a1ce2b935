package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"profile-service/config"
)

// ErrNotConfigured is returned by New when the bucket or its credentials are
// missing from the configuration.
var ErrNotConfigured = errors.New("storage: bucket not configured")

// Store is an object bucket holding profile images.
type Store interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Close() error
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	switch cfg.Driver {
	case "minio":
		return NewMinIOStore(cfg)
	case "gcs", "":
		return NewGCSStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}

// Unavailable returns a Store whose every operation fails with err. main
// installs it when the bucket client cannot be built, so only uploads break.
func Unavailable(err error) Store {
	return unavailableStore{err: err}
}

type unavailableStore struct {
	err error
}

func (s unavailableStore) Upload(context.Context, string, string, io.Reader, int64) error {
	return fmt.Errorf("storage unavailable: %w", s.err)
}

func (s unavailableStore) SignedURL(context.Context, string, time.Duration) (string, error) {
	return "", fmt.Errorf("storage unavailable: %w", s.err)
}

func (s unavailableStore) Close() error {
	return nil
}
