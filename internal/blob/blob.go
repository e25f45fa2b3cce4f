package blob

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

var ErrInvalidKey = errors.New("invalid blob key")

// Store is an object store holding generated reports.
type Store interface {
	Upload(ctx context.Context, folder string, name string, body []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Key joins folder and object name into a store key.
func Key(folder string, name string) string {
	return strings.Trim(folder, "/") + "/" + name
}

// ValidateKey rejects keys that are empty, absolute or escape their folder.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	if path.Clean(key) != key {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
