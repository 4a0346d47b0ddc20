package redis

// Package redis provides Redis-based adapters for durable token storage.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sudheendra1210/Citycycle/internal/credential"
	"github.com/sudheendra1210/Citycycle/internal/ports"
)

// DefaultPrefix namespaces every key this package writes.
const DefaultPrefix = "citycycle:"

// TokenStore is a Redis-based ports.TokenStore for one durable key.
// JWT tokens get a TTL matching their exp claim; opaque tokens never expire.
type TokenStore struct {
	client redis.UniversalClient
	key    string
	now    func() time.Time
}

var _ ports.TokenStore = (*TokenStore)(nil)

// NewTokenStore creates a token store for DefaultPrefix + name.
func NewTokenStore(client redis.UniversalClient, name string) *TokenStore {
	return NewTokenStoreWithPrefix(client, DefaultPrefix, name)
}

// NewTokenStoreWithPrefix creates a token store with a custom key prefix.
func NewTokenStoreWithPrefix(client redis.UniversalClient, prefix, name string) *TokenStore {
	return &TokenStore{
		client: client,
		key:    prefix + name,
		now:    time.Now,
	}
}

func (s *TokenStore) Set(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}

	var ttl time.Duration
	if exp, ok := credential.ExpiresAt(token); ok {
		ttl = exp.Sub(s.now())
		if ttl <= 0 {
			// Token is already expired, don't save it
			return errors.New("token is expired")
		}
	}

	return s.client.Set(ctx, s.key, token, ttl).Err()
}

func (s *TokenStore) Get(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ports.ErrNoToken
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return token, nil
}

func (s *TokenStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
