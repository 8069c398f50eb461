package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found or expired")

const refreshTokenKeyPrefix = "refresh_token"

// TokenStore keeps refresh tokens in Redis with a TTL matching their
// expiry. Revocation is a delete, expiry is handled by Redis itself.
type TokenStore interface {
	Save(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error
	Lookup(ctx context.Context, token string) (uuid.UUID, error)
	Revoke(ctx context.Context, token string) error
}

type tokenStore struct {
	client *redis.Client
}

// NewTokenStore creates a Redis-backed TokenStore.
func NewTokenStore(client *redis.Client) TokenStore {
	return &tokenStore{client: client}
}

func refreshTokenKey(token string) string {
	return fmt.Sprintf("%s:%s", refreshTokenKeyPrefix, token)
}

// Save stores the token -> user mapping for ttl.
func (s *tokenStore) Save(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	if err := s.client.Set(ctx, refreshTokenKey(token), userID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// Lookup resolves a token to the owning user.
func (s *tokenStore) Lookup(ctx context.Context, token string) (uuid.UUID, error) {
	val, err := s.client.Get(ctx, refreshTokenKey(token)).Result()
	if err != nil {
		if err == redis.Nil {
			return uuid.Nil, ErrRefreshTokenNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	userID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt refresh token record: %w", err)
	}

	return userID, nil
}

// Revoke deletes the token; revoking an unknown token is a no-op.
func (s *tokenStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, refreshTokenKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}
