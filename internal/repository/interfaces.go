package repository

import (
	"context"
	"time"

	"votecore/internal/domain"
)

// CastVoteParams describes one vote to append to the ledger
type CastVoteParams struct {
	PollID   string
	OptionID string
	Voter    domain.VoterKey
	Now      time.Time
}

// PollRepository is the ledger and counter store. Implementations must run
// CastVote's duplicate check, vote append and both counter increments as one
// atomic unit, and never expose a state where they disagree.
type PollRepository interface {
	// CreatePoll stores a new poll with its options
	CreatePoll(ctx context.Context, poll *domain.Poll) error

	// GetPoll returns a poll with its options, or domain.ErrPollNotFound
	GetPoll(ctx context.Context, pollID string) (*domain.Poll, error)

	// SnapshotCounts reads the poll and all option counts from one point in time
	SnapshotCounts(ctx context.Context, pollID string) (*domain.Poll, error)

	// ListActivePollIDs returns ids of polls flagged active, newest first
	ListActivePollIDs(ctx context.Context) ([]string, error)

	// ListPolls returns polls with their options that pass filter, newest first
	ListPolls(ctx context.Context, filter domain.PollFilter) ([]*domain.Poll, error)

	// CastVote admits the voter, appends the vote and increments both counters atomically
	CastVote(ctx context.Context, params CastVoteParams) (*domain.Vote, error)

	// Reconcile recomputes option and poll counters from the ledger
	Reconcile(ctx context.Context, pollID string) (*domain.Poll, error)

	// CheckConsistency compares cached counters with a direct ledger count
	CheckConsistency(ctx context.Context, pollID string) (*domain.ConsistencyReport, error)

	// HasUserVoted reports whether an authenticated user has a vote in the poll
	HasUserVoted(ctx context.Context, pollID, userID string) (bool, error)

	// ListVotesByUser returns an authenticated user's votes, newest first
	ListVotesByUser(ctx context.Context, userID string) ([]*domain.UserVote, error)

	// SaveResult upserts the durable copy of a published snapshot
	SaveResult(ctx context.Context, result *domain.StoredResult) error

	// GetStoredResult returns the last published snapshot, or nil if none
	GetStoredResult(ctx context.Context, pollID string) (*domain.StoredResult, error)
}
