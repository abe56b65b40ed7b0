package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"votecore/internal/domain"
	"votecore/internal/repository"
	"votecore/pkg/logger"
)

func seedPoll(t *testing.T, repo repository.PollRepository, mutate func(p *domain.Poll)) *domain.Poll {
	t.Helper()
	poll := &domain.Poll{
		Title:    "Cats or Dogs?",
		IsActive: true,
		Options: []domain.Option{
			{Text: "Cats", Order: 0},
			{Text: "Dogs", Order: 1},
		},
	}
	if mutate != nil {
		mutate(poll)
	}
	require.NoError(t, repo.CreatePoll(context.Background(), poll))
	return poll
}

func vote(t *testing.T, repo repository.PollRepository, poll *domain.Poll, optionIdx int, voter domain.VoterKey) {
	t.Helper()
	_, err := repo.CastVote(context.Background(), repository.CastVoteParams{
		PollID:   poll.ID,
		OptionID: poll.Options[optionIdx].ID,
		Voter:    voter,
		Now:      time.Now(),
	})
	require.NoError(t, err)
}

// MockResultCache is a testify mock used to simulate cache outages
type MockResultCache struct {
	mock.Mock
}

func (m *MockResultCache) Get(ctx context.Context, pollID string) (*domain.ResultSnapshot, error) {
	args := m.Called(ctx, pollID)
	snap, _ := args.Get(0).(*domain.ResultSnapshot)
	return snap, args.Error(1)
}

func (m *MockResultCache) Put(ctx context.Context, pollID string, snapshot *domain.ResultSnapshot, generation int64, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, pollID, snapshot, generation, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockResultCache) Invalidate(ctx context.Context, pollID string) error {
	return m.Called(ctx, pollID).Error(0)
}

func (m *MockResultCache) Generation(ctx context.Context, pollID string) (int64, error) {
	args := m.Called(ctx, pollID)
	return args.Get(0).(int64), args.Error(1)
}

// failingQueue rejects every task
type failingQueue struct {
	err      error
	enqueued int
}

func (q *failingQueue) Enqueue(ctx context.Context, task RefreshTask) error {
	q.enqueued++
	return q.err
}

func (q *failingQueue) Start(ctx context.Context, handler TaskHandler) error { return nil }
func (q *failingQueue) Stop(ctx context.Context) error                      { return nil }

func nopLogger() *logger.Logger { return logger.NewNop() }
