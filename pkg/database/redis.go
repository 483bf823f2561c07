package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host        string
	Port        int
	Password    string
	DB          int
	DialTimeout time.Duration
}

// DefaultRedisConfig returns sensible defaults for Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Host:        "localhost",
		Port:        6379,
		Password:    "",
		DB:          0,
		DialTimeout: 5 * time.Second,
	}
}

// Addr returns the Redis address string.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewRedisClient creates a new Redis client and verifies the connection.
// The client is closed again when the ping fails.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
