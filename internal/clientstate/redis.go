package clientstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/byonco/webgate/internal/config"
)

// RedisStore implements Store on a redis backend.
type RedisStore struct {
	Db *redis.Client
}

// NewRedisStore connects to redis and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, cfg config.RedisConnection) (*RedisStore, error) {
	const op = "clientstate.NewRedisStore"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &RedisStore{Db: db}, nil
}

// Get reads and unmarshals the JSON blob at key.
func (s *RedisStore) Get(ctx context.Context, key string, result any) (bool, error) {
	const op = "clientstate.RedisStore.Get"
	val, err := s.Db.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal([]byte(val), result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set marshals the value to JSON and stores it with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	const op = "clientstate.RedisStore.Set"
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.Db.Set(ctx, key, jsonData, expiration).Err()
}

// Clear removes the key.
func (s *RedisStore) Clear(ctx context.Context, key string) error {
	return s.Db.Del(ctx, key).Err()
}
