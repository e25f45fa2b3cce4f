package cache

import (
	"context"
	"time"
)

// URLCache holds presigned report links keyed by blob key.
type URLCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, url string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type NoopURLCache struct{}

func (NoopURLCache) Get(_ context.Context, _ string) (string, bool, error) {
	return "", false, nil
}

func (NoopURLCache) Set(_ context.Context, _ string, _ string, _ time.Duration) error {
	return nil
}

func (NoopURLCache) Delete(_ context.Context, _ string) error {
	return nil
}
