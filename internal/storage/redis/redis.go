// Package redis adapts go-redis to storage.Cache and storage.Publisher.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hlstats/daemon/internal/storage"
	goredis "github.com/redis/go-redis/v9"
)

// Adapter implements storage.Cache and storage.Publisher over a *redis.Client.
type Adapter struct {
	client *goredis.Client
}

// New constructs an Adapter backed by client.
func New(client *goredis.Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Get(ctx context.Context, key string) (string, error) {
	val, err := a.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: get %q: %w", key, err)
	}
	return val, nil
}

func (a *Adapter) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := a.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %q: %w", key, err)
	}
	return nil
}

func (a *Adapter) Del(ctx context.Context, key string) error {
	if err := a.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: del %q: %w", key, err)
	}
	return nil
}

func (a *Adapter) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := a.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %q: %w", channel, err)
	}
	return nil
}
