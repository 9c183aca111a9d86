package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which inbound messages were already handled
type IdempotencyStore interface {
	// MarkProcessed atomically claims key for ttl. It returns false when the
	// key is already claimed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if key is currently claimed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release drops a claim so a failed delivery can be retried
	Release(ctx context.Context, key string) error

	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a claim is kept. Default: 24 hours
	TTL time.Duration

	// Enabled determines whether idempotency checking is enabled
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
