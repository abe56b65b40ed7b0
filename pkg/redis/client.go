package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Nil is returned by reads of missing keys
const Nil = redis.Nil

type Client struct {
	rdb        *redis.Client
	KeyBuilder *KeyBuilder
	log        *zap.Logger
}

// Cache key patterns
const (
	KeyPollResults          = "results:poll:%s"     // serialized ResultSnapshot
	KeyPollResultGeneration = "results:poll:%s:gen" // invalidation counter
	KeyRefreshQueue         = "refresh:queue"
	KeyRefreshDeadLetter    = "refresh:dead_letter"
	KeyRefreshLock          = "refresh:lock:%s"
)

// TTL constants
const (
	TTLPollResults          = 300 * time.Second
	TTLPollResultGeneration = time.Hour // must outlive any in-flight recompute
	TTLRefreshLock          = 30 * time.Second
)

// NewClient creates a new Redis client
func NewClient(redisURL string, environment string, log *zap.Logger) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 50
	opts.MinIdleConns = 5
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Client{rdb: rdb, KeyBuilder: NewKeyBuilder(environment), log: log}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Get retrieves a value from Redis
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	val, err := c.rdb.Get(ctx, key).Result()
	c.logOp("redis_get", key, start, ignoreNil(err))
	return val, err
}

// GetInt64 reads an integer value, returning 0 for a missing key
func (c *Client) GetInt64(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	v, err := c.rdb.Get(ctx, key).Int64()
	c.logOp("redis_get_int", key, start, ignoreNil(err))
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

// IncrWithExpire increments a counter and refreshes its TTL in one transaction,
// deleting the companion keys in the same MULTI block.
func (c *Client) IncrWithExpire(ctx context.Context, key string, ttl time.Duration, alsoDelete ...string) (int64, error) {
	start := time.Now()
	var incr *redis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ttl)
		if len(alsoDelete) > 0 {
			pipe.Del(ctx, alsoDelete...)
		}
		return nil
	})
	c.logOp("redis_incr", key, start, err)
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Eval runs a Lua script
func (c *Client) Eval(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (interface{}, error) {
	start := time.Now()
	res, err := script.Run(ctx, c.rdb, keys, args...).Result()
	prefix := ""
	if len(keys) > 0 {
		prefix = keys[0]
	}
	c.logOp("redis_eval", prefix, start, ignoreNil(err))
	return res, err
}

// LPush prepends values to a list
func (c *Client) LPush(ctx context.Context, key string, values ...interface{}) error {
	start := time.Now()
	err := c.rdb.LPush(ctx, key, values...).Err()
	c.logOp("redis_lpush", key, start, err)
	return err
}

// BRPop blocks up to timeout for an element from the tail of key.
// It returns Nil when the timeout elapses.
func (c *Client) BRPop(ctx context.Context, timeout time.Duration, key string) (string, error) {
	res, err := c.rdb.BRPop(ctx, timeout, key).Result()
	if err != nil {
		return "", err
	}
	// res is [key, value]
	return res[1], nil
}

// LLen returns the length of a list
func (c *Client) LLen(ctx context.Context, key string) (int64, error) {
	return c.rdb.LLen(ctx, key).Result()
}

// Health checks the Redis connection
func (c *Client) Health(ctx context.Context) error {
	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	c.logOp("redis_ping", "", start, err)
	return err
}

func (c *Client) logOp(op, key string, start time.Time, err error) {
	dur := time.Since(start)
	if err != nil {
		c.log.Info(op,
			zap.String("key_prefix", prefixForLog(key)),
			zap.Duration("duration", dur),
			zap.Error(err))
		return
	}
	c.log.Debug(op,
		zap.String("key_prefix", prefixForLog(key)),
		zap.Duration("duration", dur))
}

func ignoreNil(err error) error {
	if err == redis.Nil {
		return nil
	}
	return err
}

// prefixForLog returns a safe prefix of a key to avoid logging PII
func prefixForLog(key string) string {
	if len(key) <= 24 {
		return key
	}
	return key[:24] + "…"
}
