package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "weather_dashboard:settings:"
	redisPingTimeout = 5 * time.Second
)

// SettingsRedis keeps settings in Redis with no expiry.
type SettingsRedis struct {
	client *redis.Client
}

var _ SettingsRepo = (*SettingsRedis)(nil)

// NewSettingsRedis connects and pings the server before returning.
func NewSettingsRedis(addr, password string, db int) (*SettingsRedis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %q: %w", addr, err)
	}
	return &SettingsRedis{client: client}, nil
}

// NewSettingsRedisClient wraps an existing client.
func NewSettingsRedisClient(client *redis.Client) *SettingsRedis {
	return &SettingsRedis{client: client}
}

func (r *SettingsRedis) Close() error {
	return r.client.Close()
}

func (r *SettingsRedis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, RedisSettingKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (r *SettingsRedis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, RedisSettingKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get %q: %w", key, err)
	}
	return v, nil
}

// RedisSettingKey is the Redis key a setting is stored under.
func RedisSettingKey(key string) string {
	return redisKeyPrefix + key
}
