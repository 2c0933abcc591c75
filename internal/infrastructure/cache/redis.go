package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"casino/internal/config"

	"github.com/go-redis/redis/v8"
)

// NewRedis connects and pings. Callers decide whether a failure is fatal.
func NewRedis(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// ============================================================================
// JSON helpers
// ============================================================================

// GetJSON loads key into dest. found is false on a cache miss.
func GetJSON(ctx context.Context, rdb *redis.Client, key string, dest interface{}) (found bool, err error) {
	val, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(val, dest)
}

func SetJSON(ctx context.Context, rdb *redis.Client, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, b, ttl).Err()
}

// Generation reads the counter at key, zero when it was never bumped. Readers
// fold it into their cache keys; an INCR on key retires every entry written
// under the previous value, including one a slow reader writes afterwards.
func Generation(ctx context.Context, rdb *redis.Client, key string) (int64, error) {
	n, err := rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// DeletePattern removes every key matching pattern using SCAN, so it does not
// block the server the way KEYS would.
func DeletePattern(ctx context.Context, rdb *redis.Client, pattern string) error {
	iter := rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}
