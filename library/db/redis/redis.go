// Package redis wraps go-redis for the texpad cache.
package redis

import (
	"context"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/redis/go-redis/v9"
)

// DB is a wrapper for go-redis
type DB struct {
	cli redis.UniversalClient
}

// NewDB connects to redis and verifies the connection.
func NewDB(ctx context.Context, opt *redis.Options) (*DB, error) {
	cli := redis.NewClient(opt)
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, errors.Wrapf(err, "ping redis %s", opt.Addr)
	}
	return &DB{cli: cli}, nil
}

// NewDBFromClient wraps an existing client.
func NewDBFromClient(cli redis.UniversalClient) *DB {
	return &DB{cli: cli}
}

// Get returns the value of key. ok is false when the key does not exist.
func (db *DB) Get(ctx context.Context, key string) (val string, ok bool, err error) {
	val, err = db.cli.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, "get %s", key)
	}
	return val, true, nil
}

// Set stores val under key with ttl, ttl <= 0 means no expiration.
func (db *DB) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := db.cli.Set(ctx, key, val, ttl).Err(); err != nil {
		return errors.Wrapf(err, "set %s", key)
	}
	return nil
}

// Del removes keys.
func (db *DB) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := db.cli.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "del")
	}
	return nil
}

// Close closes the underlying client.
func (db *DB) Close() error {
	return db.cli.Close()
}
