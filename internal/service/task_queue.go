package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"votecore/pkg/logger"
)

// ErrQueueFull is returned when the in-process queue cannot accept more tasks
var ErrQueueFull = errors.New("refresh queue is full")

const maxTaskAttempts = 3

// RefreshTask asks a worker to refresh one poll's results
type RefreshTask struct {
	PollID     string    `json:"poll_id"`
	Force      bool      `json:"force"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// TaskHandler processes one task
type TaskHandler func(ctx context.Context, task RefreshTask) error

// TaskQueue dispatches refresh work off the request path
type TaskQueue interface {
	Enqueue(ctx context.Context, task RefreshTask) error
	Start(ctx context.Context, handler TaskHandler) error
	Stop(ctx context.Context) error
}

// RefreshHandler adapts a Refresher to a TaskHandler
func RefreshHandler(r *Refresher) TaskHandler {
	return func(ctx context.Context, task RefreshTask) error {
		_, err := r.RefreshOne(ctx, task.PollID, task.Force)
		return err
	}
}

// LocalTaskQueue is a buffered channel drained by a single worker
type LocalTaskQueue struct {
	tasks  chan RefreshTask
	logger *logger.Logger

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

func NewLocalTaskQueue(size int, logger *logger.Logger) *LocalTaskQueue {
	if size <= 0 {
		size = 256
	}
	return &LocalTaskQueue{
		tasks:  make(chan RefreshTask, size),
		logger: logger,
	}
}

func (q *LocalTaskQueue) Enqueue(ctx context.Context, task RefreshTask) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *LocalTaskQueue) Start(ctx context.Context, handler TaskHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.isRunning {
		return nil
	}

	q.stopChan = make(chan struct{})
	q.wg.Add(1)
	go q.consume(ctx, handler, q.stopChan)

	q.isRunning = true
	q.logger.Info("Local refresh queue started")
	return nil
}

func (q *LocalTaskQueue) Stop(ctx context.Context) error {
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

// Len reports how many tasks are waiting
func (q *LocalTaskQueue) Len() int {
	return len(q.tasks)
}

func (q *LocalTaskQueue) consume(ctx context.Context, handler TaskHandler, stop <-chan struct{}) {
	defer q.wg.Done()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case task := <-q.tasks:
			task.Attempts++
			if err := handler(ctx, task); err != nil {
				log := q.logger.WithPoll(task.PollID).WithError(err).WithField("attempts", task.Attempts)
				if task.Attempts >= maxTaskAttempts {
					log.Error("Dropping refresh task after repeated failures")
					continue
				}
				if err := q.Enqueue(ctx, task); err != nil {
					log.Warn("Failed to requeue refresh task")
				}
			}
		}
	}
}

func waitGroupWithContext(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
