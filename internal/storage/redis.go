package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each key as a Redis string under a common prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a store on an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Get fetches all keys in one MGET round trip.
func (s *RedisStore) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.prefix + k
	}
	vals, err := s.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis mget: %v", ErrUnavailable, err)
	}
	for i, v := range vals {
		switch val := v.(type) {
		case nil:
		case string:
			out[keys[i]] = []byte(val)
		default:
			return nil, fmt.Errorf("%w: unexpected redis value type %T for %s", ErrUnavailable, v, keys[i])
		}
	}
	return out, nil
}

// Put writes every entry inside MULTI/EXEC.
func (s *RedisStore) Put(ctx context.Context, entries map[string][]byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range entries {
			pipe.Set(ctx, s.prefix+k, v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: redis transaction: %v", ErrUnavailable, err)
	}
	return nil
}
