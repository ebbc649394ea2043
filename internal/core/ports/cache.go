// internal/core/ports/cache.go
package ports

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// CacheRepository defines the interface for cache operations. Implementations
// store opaque serialized values with per-key expiry and keep every call on a
// bounded timeout; backend failures come back as ordinary errors, never hangs.
type CacheRepository interface {
	// Basic operations
	Set(ctx context.Context, key string, value interface{}) error
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error

	// Liveness. Available performs a lightweight probe and never returns an
	// error; Ping reports the underlying failure for health surfaces.
	Available(ctx context.Context) bool
	Ping(ctx context.Context) error

	// Stats returns backend statistics for observability only.
	Stats(ctx context.Context) *CacheStats
}

// CacheStats holds cache backend statistics. Observability only, no
// correctness role.
type CacheStats struct {
	Connected        bool    `json:"connected"`
	KeyspaceHits     int64   `json:"keyspace_hits"`
	KeyspaceMisses   int64   `json:"keyspace_misses"`
	HitRate          float64 `json:"hit_rate"`
	UsedMemory       int64   `json:"used_memory"`
	UsedMemoryHuman  string  `json:"used_memory_human"`
	ConnectedClients int64   `json:"connected_clients"`
	TotalCommands    int64   `json:"total_commands_processed"`
}
