package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/quizengine/internal/config"
)

// TokenRepository keeps the token revocation list in Redis.
type TokenRepository struct {
	rdb *redis.Client
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(rdb *redis.Client) *TokenRepository {
	return &TokenRepository{rdb: rdb}
}

// Revoke marks jti as revoked for ttl.
func (r *TokenRepository) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return r.rdb.Set(ctx, config.CacheKey.RevokedTokenKey(jti), 1, ttl).Err()
}

// IsRevoked reports whether jti was revoked.
func (r *TokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.rdb.Exists(ctx, config.CacheKey.RevokedTokenKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
