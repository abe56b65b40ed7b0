package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"votecore/pkg/logger"
	"votecore/pkg/redis"
)

// RedisTaskQueue is a Redis list shared by all instances. Producers LPUSH,
// the consumer BRPOPs; tasks that keep failing end up in a dead-letter list.
type RedisTaskQueue struct {
	redis       *redis.Client
	logger      *logger.Logger
	pollTimeout time.Duration

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

func NewRedisTaskQueue(redisClient *redis.Client, logger *logger.Logger) *RedisTaskQueue {
	return &RedisTaskQueue{
		redis:       redisClient,
		logger:      logger,
		pollTimeout: time.Second,
	}
}

func (q *RedisTaskQueue) Enqueue(ctx context.Context, task RefreshTask) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode refresh task: %w", err)
	}
	if err := q.redis.LPush(ctx, q.redis.KeyBuilder.KeyRefreshQueue(), data); err != nil {
		return fmt.Errorf("failed to enqueue refresh task: %w", err)
	}
	return nil
}

func (q *RedisTaskQueue) Start(ctx context.Context, handler TaskHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.isRunning {
		return nil
	}

	q.stopChan = make(chan struct{})
	q.wg.Add(1)
	go q.consume(ctx, handler, q.stopChan)

	q.isRunning = true
	q.logger.Info("Redis refresh queue consumer started")
	return nil
}

func (q *RedisTaskQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	close(q.stopChan)
	q.isRunning = false
	q.mu.Unlock()

	return waitGroupWithContext(ctx, &q.wg)
}

// Len reports the number of pending tasks
func (q *RedisTaskQueue) Len(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, q.redis.KeyBuilder.KeyRefreshQueue())
}

// DeadLetterLen reports how many tasks were given up on
func (q *RedisTaskQueue) DeadLetterLen(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, q.redis.KeyBuilder.KeyRefreshDeadLetter())
}

func (q *RedisTaskQueue) consume(ctx context.Context, handler TaskHandler, stop <-chan struct{}) {
	defer q.wg.Done()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		raw, err := q.redis.BRPop(ctx, q.pollTimeout, q.redis.KeyBuilder.KeyRefreshQueue())
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				q.logger.WithError(err).Warn("Failed to read refresh queue")
				// back off so a Redis outage does not spin
				select {
				case <-time.After(q.pollTimeout):
				case <-stop:
					return
				}
			}
			continue
		}

		q.process(ctx, handler, raw)
	}
}

func (q *RedisTaskQueue) process(ctx context.Context, handler TaskHandler, raw string) {
	var task RefreshTask
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		q.logger.WithError(err).Error("Discarding malformed refresh task")
		q.deadLetter(ctx, raw)
		return
	}

	task.Attempts++
	err := handler(ctx, task)
	if err == nil {
		return
	}

	log := q.logger.WithPoll(task.PollID).WithError(err).WithField("attempts", task.Attempts)
	if task.Attempts >= maxTaskAttempts {
		log.Error("Moving refresh task to dead letter after repeated failures")
		data, _ := json.Marshal(task)
		q.deadLetter(ctx, string(data))
		return
	}

	log.Warn("Refresh task failed, requeueing")
	if err := q.Enqueue(ctx, task); err != nil {
		log.Warn("Failed to requeue refresh task")
	}
}

func (q *RedisTaskQueue) deadLetter(ctx context.Context, raw string) {
	if err := q.redis.LPush(ctx, q.redis.KeyBuilder.KeyRefreshDeadLetter(), raw); err != nil {
		q.logger.WithError(err).Error("Failed to write refresh task to dead letter")
	}
}
