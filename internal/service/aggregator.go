package service

import (
	"context"
	"time"

	"votecore/internal/domain"
	"votecore/internal/repository"
)

// Aggregator computes result snapshots from the authoritative counters
type Aggregator struct {
	repo repository.PollRepository
	now  func() time.Time
}

func NewAggregator(repo repository.PollRepository) *Aggregator {
	return &Aggregator{repo: repo, now: time.Now}
}

// Compute reads every counter of the poll from one point in time and
// derives percentages from that read.
func (a *Aggregator) Compute(ctx context.Context, pollID string) (*domain.ResultSnapshot, error) {
	poll, err := a.repo.SnapshotCounts(ctx, pollID)
	if err != nil {
		return nil, err
	}
	return domain.BuildSnapshot(poll, a.now()), nil
}
