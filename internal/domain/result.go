package domain

import (
	"math"
	"time"
)

// OptionResult is one row of a results breakdown
type OptionResult struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	VoteCount  int64   `json:"vote_count"`
	Percentage float64 `json:"percentage"`
}

// ResultSnapshot is the percentage breakdown of a poll at a point in time
type ResultSnapshot struct {
	PollID      string         `json:"poll_id"`
	PollTitle   string         `json:"poll_title"`
	TotalVotes  int64          `json:"total_votes"`
	Options     []OptionResult `json:"options"`
	LastUpdated time.Time      `json:"last_updated"`
	IsActive    bool           `json:"is_active"`
	IsExpired   bool           `json:"is_expired"`
}

// StoredResult is the durable copy of the last published snapshot
type StoredResult struct {
	PollID      string
	TotalVotes  int64
	Snapshot    *ResultSnapshot
	LastUpdated time.Time
}

// Percentage returns count/total*100 rounded to two decimals, or 0 when total is 0
func Percentage(count, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*10000) / 100
}

// BuildSnapshot computes the results breakdown from a consistent read of a poll
func BuildSnapshot(poll *Poll, now time.Time) *ResultSnapshot {
	p := poll.Clone()
	p.SortOptions()

	options := make([]OptionResult, 0, len(p.Options))
	for _, opt := range p.Options {
		options = append(options, OptionResult{
			ID:         opt.ID,
			Text:       opt.Text,
			VoteCount:  opt.VoteCount,
			Percentage: Percentage(opt.VoteCount, p.TotalVotes),
		})
	}

	return &ResultSnapshot{
		PollID:      p.ID,
		PollTitle:   p.Title,
		TotalVotes:  p.TotalVotes,
		Options:     options,
		LastUpdated: now.UTC(),
		IsActive:    p.IsActive,
		IsExpired:   p.IsExpired(now),
	}
}

// Clone returns a copy that shares no slices with s
func (s *ResultSnapshot) Clone() *ResultSnapshot {
	cp := *s
	cp.Options = make([]OptionResult, len(s.Options))
	copy(cp.Options, s.Options)
	return &cp
}
