package limiter

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window limiter kept in Redis, shared by all server instances.
type Redis struct {
	rdb    redis.UniversalClient
	policy Policy
	prefix string
}

// NewRedis constructs a Redis-backed limiter.
func NewRedis(rdb redis.UniversalClient, p Policy) *Redis {
	return &Redis{rdb: rdb, policy: p, prefix: "cellar:login:"}
}

func (l *Redis) keys(username string, ipHash []byte) (fails, block string) {
	base := l.prefix + username + ":" + hex.EncodeToString(ipHash)
	return base + ":fails", base + ":block"
}

// Allow reports whether the pair is not currently blocked.
func (l *Redis) Allow(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	_, block := l.keys(username, ipHash)
	ttl, err := l.rdb.PTTL(ctx, block).Result()
	if err != nil {
		return false, 0, err
	}
	// PTTL is negative when the key is absent.
	if ttl > 0 {
		return false, ttl, nil
	}
	return true, 0, nil
}

// Success clears the failure counter and any block.
func (l *Redis) Success(ctx context.Context, username string, ipHash []byte) error {
	fails, block := l.keys(username, ipHash)
	return l.rdb.Del(ctx, fails, block).Err()
}

// Failure increments the counter of the current window and sets a block
// once MaxFailures is reached.
func (l *Redis) Failure(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	fails, block := l.keys(username, ipHash)

	n, err := l.rdb.Incr(ctx, fails).Result()
	if err != nil {
		return false, 0, err
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, fails, l.policy.Window).Err(); err != nil {
			return false, 0, err
		}
	}
	if n < int64(l.policy.MaxFailures) {
		return false, 0, nil
	}
	_, err = l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, block, 1, l.policy.BlockFor)
		p.Del(ctx, fails)
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return true, l.policy.BlockFor, nil
}
