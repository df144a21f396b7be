package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

const redisKeyPrefix = "finsync:"

// Redis is a rueidis-backed cache backend for multi-instance deployments,
// where a live session URL published by one instance must be readable from
// another.
type Redis struct {
	client rueidis.Client
}

// NewRedis connects to a Redis server.
func NewRedis(addr, password string) (*Redis, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{addr},
		Password:    password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// Name returns the backend identifier.
func (r *Redis) Name() string { return "redis" }

// Get retrieves a value.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	resp := r.client.Do(ctx, r.client.B().Get().Key(redisKeyPrefix+key).Build())
	value, err := resp.ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return value, nil
}

// Set stores a value with the given TTL.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	cmd := r.client.B().Set().Key(redisKeyPrefix + key).Value(value).Ex(ttl).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete removes a key. Absent keys are not an error.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Do(ctx, r.client.B().Del().Key(redisKeyPrefix+key).Build()).Error(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Close releases the client.
func (r *Redis) Close() {
	r.client.Close()
}
