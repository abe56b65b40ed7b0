package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"votecore/internal/domain"
	"votecore/pkg/redis"
)

// putIfGeneration stores ARGV[2] at KEYS[1] for ARGV[3] ms only while the
// generation counter at KEYS[2] still equals ARGV[1].
var putIfGeneration = goredis.NewScript(`
local gen = redis.call('GET', KEYS[2])
if gen == false then gen = '0' end
if gen ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RedisResultCache keeps snapshots as JSON strings in Redis
type RedisResultCache struct {
	redis  *redis.Client
	logger *zap.Logger
}

func NewRedisResultCache(redisClient *redis.Client, logger *zap.Logger) *RedisResultCache {
	return &RedisResultCache{redis: redisClient, logger: logger}
}

func (c *RedisResultCache) Get(ctx context.Context, pollID string) (*domain.ResultSnapshot, error) {
	raw, err := c.redis.Get(ctx, c.redis.KeyBuilder.KeyPollResults(pollID))
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached results: %w", err)
	}

	var snap domain.ResultSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		c.logger.Warn("Cached results are corrupted, treating as miss",
			zap.String("poll_id", pollID),
			zap.Error(err))
		return nil, domain.ErrCacheMiss
	}
	return &snap, nil
}

func (c *RedisResultCache) Put(ctx context.Context, pollID string, snapshot *domain.ResultSnapshot, generation int64, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return false, fmt.Errorf("failed to encode results: %w", err)
	}

	keys := []string{
		c.redis.KeyBuilder.KeyPollResults(pollID),
		c.redis.KeyBuilder.KeyPollResultGeneration(pollID),
	}
	res, err := c.redis.Eval(ctx, putIfGeneration, keys,
		strconv.FormatInt(generation, 10), string(data), ttl.Milliseconds())
	if err != nil {
		return false, fmt.Errorf("failed to cache results: %w", err)
	}

	stored, _ := res.(int64)
	return stored == 1, nil
}

func (c *RedisResultCache) Invalidate(ctx context.Context, pollID string) error {
	_, err := c.redis.IncrWithExpire(ctx,
		c.redis.KeyBuilder.KeyPollResultGeneration(pollID),
		redis.TTLPollResultGeneration,
		c.redis.KeyBuilder.KeyPollResults(pollID))
	if err != nil {
		return fmt.Errorf("failed to invalidate results: %w", err)
	}
	return nil
}

func (c *RedisResultCache) Generation(ctx context.Context, pollID string) (int64, error) {
	gen, err := c.redis.GetInt64(ctx, c.redis.KeyBuilder.KeyPollResultGeneration(pollID))
	if err != nil {
		return 0, fmt.Errorf("failed to read results generation: %w", err)
	}
	return gen, nil
}
