package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"votecore/internal/domain"
	"votecore/internal/repository"
	"votecore/pkg/logger"
	"votecore/pkg/redis"
)

// RefreshLocker serialises refreshes of one poll across instances
type RefreshLocker interface {
	TryRefreshLock(ctx context.Context, pollID string, action func(ctx context.Context) error) error
}

// RefreshReport counts the outcome of a RefreshAll pass
type RefreshReport struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// RefresherConfig holds the knobs for the background refresher
type RefresherConfig struct {
	TTL       time.Duration
	Interval  time.Duration
	Reconcile bool
}

// Refresher recomputes and republishes result snapshots. It only reads
// counters and writes cache and stored-result rows, so overlapping runs
// are harmless.
type Refresher struct {
	repo       repository.PollRepository
	aggregator *Aggregator
	cache      ResultCache
	locker     RefreshLocker
	cfg        RefresherConfig
	logger     *logger.Logger

	mu        sync.Mutex
	isRunning bool
	ticker    *time.Ticker
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewRefresher creates a refresher; locker may be nil when running on a single instance
func NewRefresher(repo repository.PollRepository, aggregator *Aggregator, cache ResultCache, locker RefreshLocker, cfg RefresherConfig, logger *logger.Logger) *Refresher {
	if cfg.TTL <= 0 {
		cfg.TTL = 300 * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Refresher{
		repo:       repo,
		aggregator: aggregator,
		cache:      cache,
		locker:     locker,
		cfg:        cfg,
		logger:     logger,
	}
}

// RefreshAll refreshes every active poll. Cancellation is honoured between
// polls; a poll in flight is allowed to finish.
func (r *Refresher) RefreshAll(ctx context.Context, force bool) (RefreshReport, error) {
	var report RefreshReport

	pollIDs, err := r.repo.ListActivePollIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list active polls: %w", err)
	}

	for _, pollID := range pollIDs {
		select {
		case <-ctx.Done():
			r.logger.WithField("processed", report.Updated+report.Skipped+report.Failed).
				Info("Refresh cancelled")
			return report, ctx.Err()
		default:
		}

		updated, err := r.RefreshOne(ctx, pollID, force)
		switch {
		case err != nil:
			report.Failed++
			r.logger.WithPoll(pollID).WithError(err).Error("Failed to refresh poll results")
		case updated:
			report.Updated++
		default:
			report.Skipped++
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"updated": report.Updated,
		"skipped": report.Skipped,
		"failed":  report.Failed,
		"force":   force,
	}).Info("Refreshed poll results")
	return report, nil
}

// RefreshOne recomputes one poll's results. Without force it skips polls
// whose published total already matches the counter. It returns false when
// it skipped, including when another instance holds the poll's refresh lock.
func (r *Refresher) RefreshOne(ctx context.Context, pollID string, force bool) (bool, error) {
	if r.locker == nil {
		return r.refresh(ctx, pollID, force)
	}

	var updated bool
	err := r.locker.TryRefreshLock(ctx, pollID, func(ctx context.Context) error {
		var err error
		updated, err = r.refresh(ctx, pollID, force)
		return err
	})
	if errors.Is(err, redis.ErrLockNotAcquired) {
		r.logger.WithPoll(pollID).Debug("Refresh already in progress elsewhere")
		return false, nil
	}
	return updated, err
}

func (r *Refresher) refresh(ctx context.Context, pollID string, force bool) (bool, error) {
	log := r.logger.WithPoll(pollID)

	poll, err := r.repo.GetPoll(ctx, pollID)
	if err != nil {
		return false, err
	}

	if !force && r.upToDate(ctx, poll) {
		return false, nil
	}

	gen, genErr := r.cache.Generation(ctx, pollID)

	snap, err := r.aggregator.Compute(ctx, pollID)
	if err != nil {
		return false, err
	}

	if genErr != nil {
		log.WithError(genErr).Warn("Skipping result cache write")
	} else if _, err := r.cache.Put(ctx, pollID, snap, gen, r.cfg.TTL); err != nil {
		log.WithError(err).Warn("Failed to cache results")
	}

	err = r.repo.SaveResult(ctx, &domain.StoredResult{
		PollID:      pollID,
		TotalVotes:  snap.TotalVotes,
		Snapshot:    snap,
		LastUpdated: snap.LastUpdated,
	})
	if err != nil {
		return false, err
	}

	log.WithField("total_votes", snap.TotalVotes).Debug("Poll results refreshed")
	return true, nil
}

// upToDate compares the published total against the live counter. The cache
// is authoritative for what readers see; the stored result is only consulted
// when the cache cannot be read.
func (r *Refresher) upToDate(ctx context.Context, poll *domain.Poll) bool {
	cached, err := r.cache.Get(ctx, poll.ID)
	if err == nil {
		return cached.TotalVotes == poll.TotalVotes
	}
	if errors.Is(err, domain.ErrCacheMiss) {
		return false
	}

	stored, err := r.repo.GetStoredResult(ctx, poll.ID)
	if err != nil || stored == nil {
		return false
	}
	return stored.TotalVotes == poll.TotalVotes
}

// VerifyAll checks every active poll's counters against its ledger and
// repairs any drift. It returns the number of polls reconciled.
func (r *Refresher) VerifyAll(ctx context.Context) (int, error) {
	pollIDs, err := r.repo.ListActivePollIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active polls: %w", err)
	}

	repaired := 0
	for _, pollID := range pollIDs {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}

		fixed, err := r.Verify(ctx, pollID)
		if err != nil {
			r.logger.WithPoll(pollID).WithError(err).Error("Consistency check failed")
			continue
		}
		if fixed {
			repaired++
		}
	}
	return repaired, nil
}

// Verify checks one poll and reconciles it if its counters drifted
func (r *Refresher) Verify(ctx context.Context, pollID string) (bool, error) {
	report, err := r.repo.CheckConsistency(ctx, pollID)
	if err != nil {
		return false, err
	}

	fault := report.Fault()
	if fault == nil {
		return false, nil
	}

	r.logger.WithPoll(pollID).WithError(fault).WithFields(map[string]interface{}{
		"total_votes":     report.TotalVotes,
		"option_sum":      report.OptionSum,
		"ledger_count":    report.LedgerCount,
		"drifted_options": len(report.DriftedOptions),
	}).Error("Vote counters drifted from ledger, reconciling")

	if _, err := r.repo.Reconcile(ctx, pollID); err != nil {
		return false, fmt.Errorf("failed to reconcile poll: %w", err)
	}
	if err := r.cache.Invalidate(ctx, pollID); err != nil {
		r.logger.WithPoll(pollID).WithError(err).Warn("Failed to invalidate cached results")
	}
	return true, nil
}

// Start runs RefreshAll on a ticker until Stop is called or ctx ends
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return nil
	}

	r.logger.WithField("interval", r.cfg.Interval.String()).Info("Starting result refresher...")

	r.ticker = time.NewTicker(r.cfg.Interval)
	r.stopChan = make(chan struct{})
	r.wg.Add(1)
	go r.refreshRoutine(ctx, r.ticker, r.stopChan)

	r.isRunning = true
	return nil
}

// Stop halts the ticker and waits for an in-flight pass to return
func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.ticker.Stop()
	close(r.stopChan)
	r.isRunning = false
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Result refresher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Refresher) refreshRoutine(ctx context.Context, ticker *time.Ticker, stop <-chan struct{}) {
	defer r.wg.Done()

	// passCtx ends when Stop is called so a long pass halts between polls
	passCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-passCtx.Done():
		}
	}()

	for {
		select {
		case <-ticker.C:
			if r.cfg.Reconcile {
				if _, err := r.VerifyAll(passCtx); err != nil && !errors.Is(err, context.Canceled) {
					r.logger.WithError(err).Error("Consistency sweep failed")
				}
			}
			if _, err := r.RefreshAll(passCtx, false); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.WithError(err).Error("Periodic refresh failed")
			}
		case <-passCtx.Done():
			r.logger.Debug("Refresh routine stopped")
			return
		}
	}
}
