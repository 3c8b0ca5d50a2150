package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/softstore/internal/infrastructure/redis"
)

// RedisRevocationStore tracks revoked token ids in Redis. Entries expire with
// the token itself, so the denylist never needs sweeping.
type RedisRevocationStore struct {
	redis  *redis.Client
	logger *slog.Logger
}

// NewRedisRevocationStore creates a new revocation store
func NewRedisRevocationStore(redisClient *redis.Client, logger *slog.Logger) *RedisRevocationStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &RedisRevocationStore{
		redis:  redisClient,
		logger: logger,
	}
}

func revocationKey(jti string) string {
	return "revoked:" + jti
}

// Revoke denylists a token id for the remainder of its lifetime
func (r *RedisRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second // already expired; keep the entry briefly anyway
	}

	if err := r.redis.Set(ctx, revocationKey(jti), "1", ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	r.logger.Info("token revoked", slog.String("jti", jti))
	return nil
}

// IsRevoked reports whether a token id has been denylisted
func (r *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	revoked, err := r.redis.Exists(ctx, revocationKey(jti))
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return revoked, nil
}
