package limiter

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a limiter backed by expiring Redis counters.
type Redis struct {
	rdb    redis.UniversalClient
	set    Settings
	prefix string
}

// NewRedis constructs a Redis-backed limiter.
func NewRedis(rdb redis.UniversalClient, set Settings) *Redis {
	return &Redis{rdb: rdb, set: set, prefix: "sd:login"}
}

func (l *Redis) failKey(key string, ipHash []byte) string {
	return l.prefix + ":fail:" + key + ":" + hex.EncodeToString(ipHash)
}

func (l *Redis) blockKey(key string, ipHash []byte) string {
	return l.prefix + ":block:" + key + ":" + hex.EncodeToString(ipHash)
}

// Allow reports whether a block key is currently set.
func (l *Redis) Allow(ctx context.Context, key string, ipHash []byte) (bool, time.Duration, error) {
	ttl, err := l.rdb.PTTL(ctx, l.blockKey(key, ipHash)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, 0, fmt.Errorf("limiter allow: %w", err)
	}
	// PTTL returns a negative duration when the key is missing.
	if ttl > 0 {
		return false, ttl, nil
	}
	return true, 0, nil
}

// Success clears both the failure counter and any block.
func (l *Redis) Success(ctx context.Context, key string, ipHash []byte) error {
	if err := l.rdb.Del(ctx, l.failKey(key, ipHash), l.blockKey(key, ipHash)).Err(); err != nil {
		return fmt.Errorf("limiter success: %w", err)
	}
	return nil
}

// Failure increments the windowed counter and blocks once MaxFails is reached.
func (l *Redis) Failure(ctx context.Context, key string, ipHash []byte) (bool, time.Duration, error) {
	fk := l.failKey(key, ipHash)

	count, err := l.rdb.Incr(ctx, fk).Result()
	if err != nil {
		return false, 0, fmt.Errorf("limiter failure: %w", err)
	}
	// Fixed window: the TTL is set by the first failure only.
	if count == 1 {
		if err := l.rdb.Expire(ctx, fk, l.set.Window).Err(); err != nil {
			return false, 0, fmt.Errorf("limiter failure: %w", err)
		}
	}
	if count < int64(l.set.MaxFails) {
		return false, 0, nil
	}

	_, err = l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, l.blockKey(key, ipHash), 1, l.set.BlockFor)
		p.Del(ctx, fk)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("limiter block: %w", err)
	}
	return true, l.set.BlockFor, nil
}
