package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/mediafeed/internal/domain"
)

const keyPrefix = "mediafeed:media:"

// Store is a second-level media cache shared between feed processes. Entries
// expire after the configured TTL; Redis memory policy bounds the total size.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a Redis-backed media store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
	}
}

func storeKey(pool domain.Pool, key string) string {
	return keyPrefix + pool.String() + ":" + key
}

// Get returns the payload stored under key. A missing entry is reported as
// ok == false with a nil error.
func (s *Store) Get(ctx context.Context, pool domain.Pool, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, storeKey(pool, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get media: %w", err)
	}
	return data, true, nil
}

// Set stores payload under key with the configured TTL.
func (s *Store) Set(ctx context.Context, pool domain.Pool, key string, payload []byte) error {
	if err := s.client.Set(ctx, storeKey(pool, key), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set media: %w", err)
	}
	return nil
}

// Ping checks connectivity; used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
