package localstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStorage stores values in Redis under a common key prefix
type RedisStorage struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStorage creates a Redis backed store and checks connectivity
func NewRedisStorage(addr, password string, db int, prefix string) (*RedisStorage, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStorage{rdb: rdb, prefix: prefix}, nil
}

// Close closes the Redis connection
func (s *RedisStorage) Close() error {
	return s.rdb.Close()
}

func (s *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, s.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (s *RedisStorage) Set(ctx context.Context, key, value string) error {
	if err := s.rdb.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		if isOutOfMemory(err) {
			return fmt.Errorf("redis set %s: %w", key, ErrQuotaExceeded)
		}
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStorage) Remove(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (s *RedisStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, s.prefix+prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, s.prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// isOutOfMemory detects the error Redis returns when maxmemory is reached
func isOutOfMemory(err error) bool {
	return strings.HasPrefix(err.Error(), "OOM ")
}
