package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPollNotFound        = errors.New("poll not found")
	ErrOptionNotFound      = errors.New("option not found")
	ErrUnidentifiableVoter = errors.New("voter cannot be identified")
	ErrCacheMiss           = errors.New("cache miss")
)

// EligibilityReason names why a voter was refused
type EligibilityReason string

const (
	ReasonPollInactive EligibilityReason = "poll_inactive"
	ReasonPollExpired  EligibilityReason = "poll_expired"
	ReasonAlreadyVoted EligibilityReason = "already_voted"
)

// EligibilityError is returned when a poll or voter may not vote
type EligibilityError struct {
	Reason EligibilityReason
}

func NewEligibilityError(reason EligibilityReason) *EligibilityError {
	return &EligibilityError{Reason: reason}
}

func (e *EligibilityError) Error() string {
	switch e.Reason {
	case ReasonPollExpired:
		return "This poll has expired."
	case ReasonPollInactive:
		return "This poll is not currently active."
	case ReasonAlreadyVoted:
		return "You have already voted in this poll."
	default:
		return "You cannot vote in this poll."
	}
}

// IsEligibilityReason reports whether err is an EligibilityError with the given reason
func IsEligibilityReason(err error, reason EligibilityReason) bool {
	var e *EligibilityError
	return errors.As(err, &e) && e.Reason == reason
}

// ValidationError is a client mistake in the request itself
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// InvalidOptionError is returned when no option matches the submitted text
type InvalidOptionError struct {
	Available []string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("Invalid option. Available options: %s", strings.Join(e.Available, ", "))
}

func (e *InvalidOptionError) Is(target error) bool {
	return target == ErrOptionNotFound
}

// ConsistencyFault means cached counters drifted from the ledger
type ConsistencyFault struct {
	Report *ConsistencyReport
}

func (e *ConsistencyFault) Error() string {
	r := e.Report
	return fmt.Sprintf("poll %s counters drifted: total_votes=%d option_sum=%d ledger=%d drifted_options=%d",
		r.PollID, r.TotalVotes, r.OptionSum, r.LedgerCount, len(r.DriftedOptions))
}
