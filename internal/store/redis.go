package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const DefaultRedisKey = "wall:clicks"

// Redis keeps the count under one key and relies on INCR for atomicity.
type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(addr, key string) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("empty redis addr")
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		// Plain host:port
		opts = &redis.Options{Addr: addr}
	}
	return NewRedisFromClient(redis.NewClient(opts), key), nil
}

func NewRedisFromClient(client *redis.Client, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

func (r *Redis) Get(ctx context.Context) (int64, error) {
	n, err := r.client.Get(ctx, r.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return n, nil
}

func (r *Redis) Incr(ctx context.Context) (int64, error) {
	n, err := r.client.Incr(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", r.key, err)
	}
	return n, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
