package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned on a cache miss.
	ErrNotFound = errors.New("cache: key not found")
	// ErrUnavailable wraps transport failures talking to the backing store.
	// Callers treat it as a hard error; the pipeline never silently skips
	// the cache.
	ErrUnavailable = errors.New("cache: store unavailable")
)

// Store is the key/value boundary shared by every orchestration worker.
// Values are opaque bytes (UTF-8 text or binary audio); a ttl of zero
// means the entry never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
