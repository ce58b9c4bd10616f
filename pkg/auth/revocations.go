package auth

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Revocations reports whether a token ID has been revoked before expiry.
type Revocations interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisClient is the subset of *redis.Client used for revocation lookups.
type RedisClient interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ RedisClient = (*redis.Client)(nil)

// RedisRevocations looks token IDs up as keys in Redis. The logout flow
// writes "<prefix><jti>" with a TTL equal to the token's remaining life.
type RedisRevocations struct {
	client RedisClient
	prefix string
}

// RedisRevocationsOption configures RedisRevocations.
type RedisRevocationsOption func(*RedisRevocations)

// WithRevocationPrefix sets the key prefix.
// Default: "portal:revoked:".
func WithRevocationPrefix(prefix string) RedisRevocationsOption {
	return func(r *RedisRevocations) {
		r.prefix = prefix
	}
}

// NewRedisRevocations creates a revocation list backed by client.
func NewRedisRevocations(client RedisClient, opts ...RedisRevocationsOption) *RedisRevocations {
	r := &RedisRevocations{
		client: client,
		prefix: "portal:revoked:",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsRevoked implements Revocations.
func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
