package domain

import (
	"context"
	"fmt"
	"time"
)

// VoterRegistry records which voter keys hold a vote in a poll.
// It is always consulted inside the same atomic unit that appends the vote.
type VoterRegistry interface {
	// Register claims key for pollID and reports whether a prior vote already matched it.
	Register(ctx context.Context, pollID string, key VoterKey) (alreadyVoted bool, err error)
}

// RegistryFunc adapts a function to VoterRegistry
type RegistryFunc func(ctx context.Context, pollID string, key VoterKey) (bool, error)

func (f RegistryFunc) Register(ctx context.Context, pollID string, key VoterKey) (bool, error) {
	return f(ctx, pollID, key)
}

// CheckOpen rejects votes on a poll that is expired or inactive, whoever the voter.
// Expiry is checked before activity so an expired poll always reports PollExpired.
func CheckOpen(poll *Poll, now time.Time) error {
	if poll.IsExpired(now) {
		return NewEligibilityError(ReasonPollExpired)
	}
	if !poll.IsActive {
		return NewEligibilityError(ReasonPollInactive)
	}
	return nil
}

// Admit decides whether key may vote in poll at now
func Admit(ctx context.Context, poll *Poll, key VoterKey, now time.Time, registry VoterRegistry) error {
	if err := CheckOpen(poll, now); err != nil {
		return err
	}
	if key.IsZero() {
		return ErrUnidentifiableVoter
	}
	if poll.AllowMultipleVotes {
		return nil
	}

	alreadyVoted, err := registry.Register(ctx, poll.ID, key)
	if err != nil {
		return fmt.Errorf("failed to check prior votes: %w", err)
	}
	if alreadyVoted {
		return NewEligibilityError(ReasonAlreadyVoted)
	}
	return nil
}
