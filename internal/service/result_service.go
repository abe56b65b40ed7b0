package service

import (
	"context"
	"errors"
	"time"

	"votecore/internal/domain"
	"votecore/internal/repository"
	"votecore/pkg/logger"
)

// ResultService serves poll results cache-aside: a hit is returned as is, a
// miss or a cache failure is computed synchronously from the counters.
type ResultService struct {
	repo       repository.PollRepository
	aggregator *Aggregator
	cache      ResultCache
	ttl        time.Duration
	logger     *logger.Logger
}

func NewResultService(repo repository.PollRepository, aggregator *Aggregator, cache ResultCache, ttl time.Duration, logger *logger.Logger) *ResultService {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &ResultService{
		repo:       repo,
		aggregator: aggregator,
		cache:      cache,
		ttl:        ttl,
		logger:     logger,
	}
}

// GetResults returns the results for pollID, or domain.ErrPollNotFound
func (s *ResultService) GetResults(ctx context.Context, pollID string) (*domain.ResultSnapshot, error) {
	log := s.logger.WithPoll(pollID)

	snap, err := s.cache.Get(ctx, pollID)
	if err == nil {
		log.Debug("Results served from cache")
		return snap, nil
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		log.WithError(err).Warn("Result cache unavailable, computing from counters")
	}

	return s.computeAndCache(ctx, pollID, log)
}

// computeAndCache computes a fresh snapshot and stores it if no vote invalidated
// the cache while it was being computed.
func (s *ResultService) computeAndCache(ctx context.Context, pollID string, log *logger.Logger) (*domain.ResultSnapshot, error) {
	gen, genErr := s.cache.Generation(ctx, pollID)

	snap, err := s.aggregator.Compute(ctx, pollID)
	if err != nil {
		return nil, err
	}

	if genErr != nil {
		log.WithError(genErr).Warn("Skipping result cache write")
		return snap, nil
	}

	stored, err := s.cache.Put(ctx, pollID, snap, gen, s.ttl)
	if err != nil {
		log.WithError(err).Warn("Failed to cache results")
	} else if !stored {
		log.Debug("Results changed while computing, not caching stale snapshot")
	}
	return snap, nil
}

// Invalidate drops cached results after a vote; failures are logged, not returned
func (s *ResultService) Invalidate(ctx context.Context, pollID string) {
	if err := s.cache.Invalidate(ctx, pollID); err != nil {
		s.logger.WithPoll(pollID).WithError(err).Warn("Failed to invalidate cached results")
	}
}
