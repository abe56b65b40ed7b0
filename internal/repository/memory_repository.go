package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"votecore/internal/domain"
)

// MemoryPollRepository keeps polls and the vote ledger in process.
// Each poll has its own mutex, so votes in unrelated polls never contend.
type MemoryPollRepository struct {
	mu      sync.RWMutex
	polls   map[string]*pollState
	results map[string]*domain.StoredResult
}

type pollState struct {
	mu    sync.Mutex
	poll  *domain.Poll
	votes []*domain.Vote
}

// NewMemoryPollRepository creates an empty in-memory repository
func NewMemoryPollRepository() *MemoryPollRepository {
	return &MemoryPollRepository{
		polls:   make(map[string]*pollState),
		results: make(map[string]*domain.StoredResult),
	}
}

func (r *MemoryPollRepository) state(pollID string) (*pollState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.polls[pollID]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	return st, nil
}

func (r *MemoryPollRepository) CreatePoll(ctx context.Context, poll *domain.Poll) error {
	if err := poll.Validate(); err != nil {
		return err
	}

	p := poll.Clone()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	for i := range p.Options {
		if p.Options[i].ID == "" {
			p.Options[i].ID = uuid.NewString()
		}
		p.Options[i].PollID = p.ID
		p.Options[i].VoteCount = 0
	}
	p.TotalVotes = 0
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.SortOptions()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.polls[p.ID]; exists {
		return &domain.ValidationError{Field: "id", Message: "A poll with this id already exists."}
	}
	r.polls[p.ID] = &pollState{poll: p}

	poll.ID = p.ID
	poll.CreatedAt = p.CreatedAt
	poll.Options = p.Clone().Options
	return nil
}

func (r *MemoryPollRepository) GetPoll(ctx context.Context, pollID string) (*domain.Poll, error) {
	st, err := r.state(pollID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.poll.Clone(), nil
}

// SnapshotCounts is GetPoll: the per-poll mutex already gives a point-in-time view
func (r *MemoryPollRepository) SnapshotCounts(ctx context.Context, pollID string) (*domain.Poll, error) {
	return r.GetPoll(ctx, pollID)
}

func (r *MemoryPollRepository) ListActivePollIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	states := make([]*pollState, 0, len(r.polls))
	for _, st := range r.polls {
		states = append(states, st)
	}
	r.mu.RUnlock()

	type entry struct {
		id      string
		created int64
	}
	active := make([]entry, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		if st.poll.IsActive {
			active = append(active, entry{id: st.poll.ID, created: st.poll.CreatedAt.UnixNano()})
		}
		st.mu.Unlock()
	}

	sort.Slice(active, func(i, j int) bool {
		if active[i].created != active[j].created {
			return active[i].created > active[j].created
		}
		return active[i].id < active[j].id
	})

	ids := make([]string, 0, len(active))
	for _, e := range active {
		ids = append(ids, e.id)
	}
	return ids, nil
}

func (r *MemoryPollRepository) ListPolls(ctx context.Context, filter domain.PollFilter) ([]*domain.Poll, error) {
	r.mu.RLock()
	states := make([]*pollState, 0, len(r.polls))
	for _, st := range r.polls {
		states = append(states, st)
	}
	r.mu.RUnlock()

	polls := make([]*domain.Poll, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		if filter.Matches(st.poll) {
			polls = append(polls, st.poll.Clone())
		}
		st.mu.Unlock()
	}

	sort.Slice(polls, func(i, j int) bool {
		if !polls[i].CreatedAt.Equal(polls[j].CreatedAt) {
			return polls[i].CreatedAt.After(polls[j].CreatedAt)
		}
		return polls[i].ID < polls[j].ID
	})
	return polls, nil
}

func (r *MemoryPollRepository) CastVote(ctx context.Context, params CastVoteParams) (*domain.Vote, error) {
	st, err := r.state(params.PollID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	option, ok := st.poll.OptionByID(params.OptionID)
	if !ok {
		return nil, domain.ErrOptionNotFound
	}

	registry := domain.RegistryFunc(func(ctx context.Context, pollID string, key domain.VoterKey) (bool, error) {
		for _, v := range st.votes {
			if key.Matches(v) {
				return true, nil
			}
		}
		return false, nil
	})
	if err := domain.Admit(ctx, st.poll, params.Voter, params.Now, registry); err != nil {
		return nil, err
	}

	vote := &domain.Vote{
		ID:        uuid.NewString(),
		PollID:    st.poll.ID,
		OptionID:  option.ID,
		CreatedAt: params.Now.UTC(),
	}
	params.Voter.Bind(vote)

	st.votes = append(st.votes, vote)
	option.VoteCount++
	st.poll.TotalVotes++

	cp := *vote
	return &cp, nil
}

func (r *MemoryPollRepository) Reconcile(ctx context.Context, pollID string) (*domain.Poll, error) {
	st, err := r.state(pollID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	counts := make(map[string]int64, len(st.poll.Options))
	for _, v := range st.votes {
		counts[v.OptionID]++
	}
	for i := range st.poll.Options {
		st.poll.Options[i].VoteCount = counts[st.poll.Options[i].ID]
	}
	st.poll.TotalVotes = int64(len(st.votes))

	return st.poll.Clone(), nil
}

func (r *MemoryPollRepository) CheckConsistency(ctx context.Context, pollID string) (*domain.ConsistencyReport, error) {
	st, err := r.state(pollID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	counts := make(map[string]int64, len(st.poll.Options))
	for _, v := range st.votes {
		counts[v.OptionID]++
	}

	report := &domain.ConsistencyReport{
		PollID:      pollID,
		TotalVotes:  st.poll.TotalVotes,
		LedgerCount: int64(len(st.votes)),
	}
	for _, opt := range st.poll.Options {
		report.OptionSum += opt.VoteCount
		if opt.VoteCount != counts[opt.ID] {
			report.DriftedOptions = append(report.DriftedOptions, domain.OptionDrift{
				OptionID: opt.ID,
				Cached:   opt.VoteCount,
				Counted:  counts[opt.ID],
			})
		}
	}
	return report, nil
}

func (r *MemoryPollRepository) HasUserVoted(ctx context.Context, pollID, userID string) (bool, error) {
	st, err := r.state(pollID)
	if err != nil {
		return false, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	key := domain.UserVoter(userID)
	for _, v := range st.votes {
		if key.Matches(v) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryPollRepository) ListVotesByUser(ctx context.Context, userID string) ([]*domain.UserVote, error) {
	r.mu.RLock()
	states := make([]*pollState, 0, len(r.polls))
	for _, st := range r.polls {
		states = append(states, st)
	}
	r.mu.RUnlock()

	key := domain.UserVoter(userID)
	var votes []*domain.UserVote
	for _, st := range states {
		st.mu.Lock()
		for _, v := range st.votes {
			if !key.Matches(v) {
				continue
			}
			opt, _ := st.poll.OptionByID(v.OptionID)
			votes = append(votes, &domain.UserVote{
				ID:         v.ID,
				PollID:     st.poll.ID,
				PollTitle:  st.poll.Title,
				OptionText: opt.Text,
				CreatedAt:  v.CreatedAt,
			})
		}
		st.mu.Unlock()
	}

	sort.Slice(votes, func(i, j int) bool {
		return votes[i].CreatedAt.After(votes[j].CreatedAt)
	})
	return votes, nil
}

func (r *MemoryPollRepository) SaveResult(ctx context.Context, result *domain.StoredResult) error {
	if _, err := r.state(result.PollID); err != nil {
		return err
	}

	cp := *result
	if result.Snapshot != nil {
		cp.Snapshot = result.Snapshot.Clone()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[result.PollID] = &cp
	return nil
}

func (r *MemoryPollRepository) GetStoredResult(ctx context.Context, pollID string) (*domain.StoredResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.results[pollID]
	if !ok {
		return nil, nil
	}
	cp := *res
	if res.Snapshot != nil {
		cp.Snapshot = res.Snapshot.Clone()
	}
	return &cp, nil
}
