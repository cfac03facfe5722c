// Package redis wraps the shared coordination store used for cluster-wide
// rate limit enforcement.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"care-gateway/internal/common/errors"
)

const keyPrefix = "ratelimit:"

// checkScript implements the sliding-window log check-and-increment as a
// single atomic unit. A read-then-write sequence would let concurrent
// callers exceed the limit by the number of racing requests.
//
// KEYS[1] = zset key, ARGV[1] = now (ms), ARGV[2] = window (ms),
// ARGV[3] = limit, ARGV[4] = member id.
// Returns {allowed, count, oldestScore}.
var checkScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, 0, now - window)
local count = redis.call("ZCARD", key)

if count < limit then
	redis.call("ZADD", key, now, ARGV[4])
	redis.call("PEXPIRE", key, window)
	return {1, count + 1, 0}
end

local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
local oldestScore = now
if oldest[2] then
	oldestScore = tonumber(oldest[2])
end
return {0, count, oldestScore}
`)

type Client struct {
	rdb    *redis.Client
	config *Config
}

type Config struct {
	Address        string        `json:"address"`
	Password       string        `json:"password"`
	DB             int           `json:"db"`
	PoolSize       int           `json:"pool_size"`
	CommandTimeout time.Duration `json:"command_timeout"`
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.ConfigError("redis config is required")
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}
	if config.CommandTimeout == 0 {
		config.CommandTimeout = 2 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.CommandTimeout,
		ReadTimeout:  config.CommandTimeout,
		WriteTimeout: config.CommandTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.ConnectionError("failed to connect to Redis", err)
	}

	return &Client{
		rdb:    rdb,
		config: config,
	}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// CheckRateLimit runs the atomic sliding-window check for key. It returns
// whether the request is admitted, the number of events now inside the
// window, and the score (ms) of the oldest event when denied.
//
// Connectivity and command failures surface as connection errors, never as
// an implicit allow; the caller decides how to degrade.
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, int, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.CommandTimeout)
	defer cancel()

	now := time.Now().UnixMilli()
	member := fmt.Sprintf("%d-%d", now, time.Now().UnixNano())

	res, err := checkScript.Run(ctx, c.rdb, []string{keyPrefix + key},
		now, window.Milliseconds(), limit, member).Result()
	if err != nil {
		return false, 0, 0, errors.ConnectionError("rate limit check failed", err).WithContext("key", key)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return false, 0, 0, errors.InternalError("unexpected rate limit script reply", nil).WithContext("key", key)
	}

	allowed := vals[0].(int64) == 1
	count := int(vals[1].(int64))
	oldest := vals[2].(int64)

	return allowed, count, oldest, nil
}

// PeekRateLimit counts events currently inside the window for key without
// consuming quota. Used to annotate responses after admission.
func (c *Client) PeekRateLimit(ctx context.Context, key string, window time.Duration) (int, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.CommandTimeout)
	defer cancel()

	// The check script removes scores <= now-window, so the live window is
	// exclusive on its lower bound.
	now := time.Now().UnixMilli()
	min := fmt.Sprintf("(%d", now-window.Milliseconds())

	count, err := c.rdb.ZCount(ctx, keyPrefix+key, min, "+inf").Result()
	if err != nil {
		return 0, 0, errors.ConnectionError("rate limit peek failed", err).WithContext("key", key)
	}

	oldest := int64(0)
	members, err := c.rdb.ZRangeByScoreWithScores(ctx, keyPrefix+key, &redis.ZRangeBy{
		Min: min, Max: "+inf", Count: 1,
	}).Result()
	if err != nil {
		return 0, 0, errors.ConnectionError("rate limit peek failed", err).WithContext("key", key)
	}
	if len(members) > 0 {
		oldest = int64(members[0].Score)
	}

	return int(count), oldest, nil
}

// ResetRateLimit removes all tracked events for a single key.
func (c *Client) ResetRateLimit(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.CommandTimeout)
	defer cancel()

	if err := c.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return errors.ConnectionError("failed to reset rate limit", err).WithContext("key", key)
	}
	return nil
}

// ClearAllRateLimits removes every tracked rate limit key. Administrative
// and test use only.
func (c *Client) ClearAllRateLimits(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return errors.ConnectionError("failed to scan rate limit keys", err)
		}

		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return errors.ConnectionError("failed to clear rate limit keys", err)
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
