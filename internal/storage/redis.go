package storage

import (
	"context"
	"errors"
	"time"

	"github.com/beije/packet-storefront/pkg/redis"
)

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	StorageKey(key string) string
}

// Redis persists entries under the pf:storage namespace without expiry.
type Redis struct {
	client redisStore
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.client.StorageKey(key))
	if errors.Is(err, redis.ErrNil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.client.StorageKey(key), value, 0)
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.client.StorageKey(key))
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
