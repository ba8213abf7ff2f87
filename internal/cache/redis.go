package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fjod/cartsync/internal/domain"
)

const (
	defaultPrefix    = "cart:"
	defaultTTL       = 15 * time.Minute
	defaultTTLJitter = 5 * time.Minute
)

// RedisCache stores carts as JSON under "<prefix><user id>".
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	jitter time.Duration
}

type RedisOption func(*RedisCache)

// WithTTL sets the base expiry; every write adds a random extra up to jitter.
func WithTTL(ttl, jitter time.Duration) RedisOption {
	return func(r *RedisCache) {
		r.ttl = ttl
		r.jitter = jitter
	}
}

func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisCache) { r.prefix = prefix }
}

func NewRedisCache(client redis.UniversalClient, opts ...RedisOption) *RedisCache {
	r := &RedisCache{
		client: client,
		prefix: defaultPrefix,
		ttl:    defaultTTL,
		jitter: defaultTTLJitter,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, r.key(userID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrCacheMiss
	case err != nil:
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	cart := new(domain.Cart)
	if err := json.Unmarshal(data, cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return cart, nil
}

func (r *RedisCache) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	err = r.client.SetArgs(ctx, r.key(userID), data, redis.SetArgs{TTL: r.expiry()}).Err()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	if err := r.client.Unlink(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis unlink failed: %w", err)
	}
	return nil
}

func (r *RedisCache) expiry() time.Duration {
	if r.jitter <= 0 {
		return r.ttl
	}
	return r.ttl + rand.N(r.jitter)
}

func (r *RedisCache) key(userID string) string {
	return r.prefix + userID
}
