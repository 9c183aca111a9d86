package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList answers whether a token was revoked before it expired.
// The identity service writes entries on logout and on forced sign-out.
type RevocationList interface {
	// IsRevoked reports whether the token with jti was revoked
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// IsUserRevoked reports whether tokens of userID issued at or before
	// issuedAt were revoked
	IsUserRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

const defaultRevocationPrefix = "token:blacklist:"

// RedisRevocationList reads revocations from the identity service's Redis keys
type RedisRevocationList struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRevocationList creates a revocation list over client
func NewRedisRevocationList(client redis.UniversalClient) *RedisRevocationList {
	return &RedisRevocationList{client: client, prefix: defaultRevocationPrefix}
}

func (r *RedisRevocationList) jtiKey(jti string) string {
	return r.prefix + "jti:" + jti
}

func (r *RedisRevocationList) userKey(userID string) string {
	return r.prefix + "user:" + userID
}

// Revoke marks jti revoked for ttl
func (r *RedisRevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.jtiKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// RevokeUser revokes every token of userID issued up to now
func (r *RedisRevocationList) RevokeUser(ctx context.Context, userID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.userKey(userID), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return nil
}

// IsRevoked implements RevocationList
func (r *RedisRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.jtiKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

// IsUserRevoked implements RevocationList
func (r *RedisRevocationList) IsUserRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	val, err := r.client.Get(ctx, r.userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user revocation: %w", err)
	}
	cutoff, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse revocation timestamp: %w", err)
	}
	return issuedAt.Unix() <= cutoff, nil
}

var _ RevocationList = (*RedisRevocationList)(nil)

// InMemoryRevocationList is a single-process RevocationList
type InMemoryRevocationList struct {
	mu    sync.RWMutex
	jtis  map[string]time.Time
	users map[string]time.Time
}

// NewInMemoryRevocationList creates an empty list
func NewInMemoryRevocationList() *InMemoryRevocationList {
	return &InMemoryRevocationList{
		jtis:  make(map[string]time.Time),
		users: make(map[string]time.Time),
	}
}

// Revoke marks jti revoked for ttl
func (r *InMemoryRevocationList) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jtis[jti] = time.Now().Add(ttl)
	return nil
}

// RevokeUser revokes every token of userID issued up to now
func (r *InMemoryRevocationList) RevokeUser(_ context.Context, userID string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = time.Now()
	return nil
}

// IsRevoked implements RevocationList
func (r *InMemoryRevocationList) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.jtis[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		delete(r.jtis, jti)
		return false, nil
	}
	return true, nil
}

// IsUserRevoked implements RevocationList
func (r *InMemoryRevocationList) IsUserRevoked(_ context.Context, userID string, issuedAt time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cutoff, ok := r.users[userID]
	if !ok {
		return false, nil
	}
	return !issuedAt.After(cutoff), nil
}

var _ RevocationList = (*InMemoryRevocationList)(nil)
