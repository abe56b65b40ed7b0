package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"votecore/internal/domain"
	"votecore/internal/repository"
	"votecore/pkg/logger"
)

// VotingService runs the vote submission flow and the per-user read paths
type VotingService struct {
	repo    repository.PollRepository
	results *ResultService
	queue   TaskQueue
	logger  *logger.Logger
	now     func() time.Time
}

func NewVotingService(repo repository.PollRepository, results *ResultService, queue TaskQueue, logger *logger.Logger) *VotingService {
	return &VotingService{
		repo:    repo,
		results: results,
		queue:   queue,
		logger:  logger,
		now:     time.Now,
	}
}

// CastVote records one vote for the option whose text matches optionText.
// Counters are updated synchronously; cache invalidation and the refresh
// dispatch are best effort and never fail an accepted vote.
func (s *VotingService) CastVote(ctx context.Context, pollID, optionText string, identity RequestIdentity) (*domain.VoteReceipt, error) {
	poll, err := s.repo.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	optionText = strings.TrimSpace(optionText)
	if optionText == "" {
		return nil, &domain.ValidationError{Field: "option_text", Message: "Option text is required."}
	}

	option, ok := poll.FindOption(optionText)
	if !ok {
		return nil, &domain.InvalidOptionError{Available: poll.OptionTexts()}
	}

	// a closed poll rejects everyone, identified or not; CastVote rechecks atomically
	if err := domain.CheckOpen(poll, s.now()); err != nil {
		return nil, err
	}

	voter, err := ResolveVoter(identity)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithPoll(pollID).WithFields(map[string]interface{}{
		"voter":      voter.String(),
		"voter_kind": voter.Kind().String(),
	})

	vote, err := s.repo.CastVote(ctx, repository.CastVoteParams{
		PollID:   pollID,
		OptionID: option.ID,
		Voter:    voter,
		Now:      s.now(),
	})
	if err != nil {
		var eligibility *domain.EligibilityError
		if errors.As(err, &eligibility) {
			log.WithField("reason", string(eligibility.Reason)).Info("Vote rejected")
		}
		return nil, err
	}

	log.WithField("option_id", option.ID).Info("Vote cast")

	s.results.Invalidate(ctx, pollID)
	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, RefreshTask{PollID: pollID}); err != nil {
			log.WithError(err).Warn("Failed to dispatch results refresh")
		}
	}

	return &domain.VoteReceipt{
		Message:    "Vote cast successfully",
		VoteID:     vote.ID,
		OptionID:   option.ID,
		OptionText: option.Text,
	}, nil
}

// GetPollDetail returns the poll with flags computed for the requester.
// userID may be empty for anonymous requesters.
func (s *VotingService) GetPollDetail(ctx context.Context, pollID, userID string) (*domain.PollDetail, error) {
	poll, err := s.repo.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	poll.SortOptions()

	now := s.now()
	detail := &domain.PollDetail{
		Poll:      poll,
		IsExpired: poll.IsExpired(now),
		CanVote:   poll.CanVote(now),
	}

	if userID != "" {
		voted, err := s.repo.HasUserVoted(ctx, pollID, userID)
		if err != nil {
			return nil, err
		}
		detail.UserHasVoted = voted
		if voted && !poll.AllowMultipleVotes {
			detail.CanVote = false
		}
	}
	return detail, nil
}

// ListUserVotes returns an authenticated user's votes, newest first
func (s *VotingService) ListUserVotes(ctx context.Context, userID string) ([]*domain.UserVote, error) {
	votes, err := s.repo.ListVotesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if votes == nil {
		votes = []*domain.UserVote{}
	}
	return votes, nil
}

// ListPolls returns polls passing filter, newest first, with options in display order
func (s *VotingService) ListPolls(ctx context.Context, filter domain.PollFilter) ([]*domain.Poll, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	polls, err := s.repo.ListPolls(ctx, filter)
	if err != nil {
		return nil, err
	}
	if polls == nil {
		polls = []*domain.Poll{}
	}
	for _, p := range polls {
		p.SortOptions()
	}
	return polls, nil
}

// ListUserPolls returns the polls created by userID, newest first
func (s *VotingService) ListUserPolls(ctx context.Context, userID string) ([]*domain.Poll, error) {
	return s.ListPolls(ctx, domain.PollFilter{CreatorID: userID})
}

// PollOptionInput is one option of a poll creation. It decodes from either
// a bare string or a {"text", "order"} object; a missing order falls back
// to the option's position in the list.
type PollOptionInput struct {
	Text  string `json:"text"`
	Order *int   `json:"order,omitempty"`
}

func (o *PollOptionInput) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*o = PollOptionInput{Text: text}
		return nil
	}
	type plain PollOptionInput
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = PollOptionInput(p)
	return nil
}

// CreatePollRequest is the body of a poll creation
type CreatePollRequest struct {
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	ExpiresAt          *time.Time        `json:"expires_at,omitempty"`
	AllowMultipleVotes bool              `json:"allow_multiple_votes"`
	Options            []PollOptionInput `json:"options"`
}

// CreatePoll stores a new active poll owned by creatorID
func (s *VotingService) CreatePoll(ctx context.Context, creatorID string, req CreatePollRequest) (*domain.Poll, error) {
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, &domain.ValidationError{Field: "expires_at", Message: "Expiry must be in the future."}
	}

	poll := &domain.Poll{
		Title:              strings.TrimSpace(req.Title),
		Description:        strings.TrimSpace(req.Description),
		CreatorID:          creatorID,
		ExpiresAt:          req.ExpiresAt,
		IsActive:           true,
		AllowMultipleVotes: req.AllowMultipleVotes,
	}
	for i, opt := range req.Options {
		order := i
		if opt.Order != nil {
			if *opt.Order < 0 {
				return nil, &domain.ValidationError{Field: "options", Message: "Option order cannot be negative."}
			}
			order = *opt.Order
		}
		poll.Options = append(poll.Options, domain.Option{Text: strings.TrimSpace(opt.Text), Order: order})
	}

	if err := s.repo.CreatePoll(ctx, poll); err != nil {
		return nil, err
	}
	poll.SortOptions()

	s.logger.WithPoll(poll.ID).WithField("options", len(poll.Options)).Info("Poll created")
	return poll, nil
}
