package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		name  string
		count int64
		total int64
		want  float64
	}{
		{name: "zero total", count: 0, total: 0, want: 0},
		{name: "all votes", count: 5, total: 5, want: 100},
		{name: "two thirds", count: 2, total: 3, want: 66.67},
		{name: "one third", count: 1, total: 3, want: 33.33},
		{name: "one seventh", count: 1, total: 7, want: 14.29},
		{name: "no votes for option", count: 0, total: 9, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percentage(tt.count, tt.total))
		})
	}
}

func TestBuildSnapshotCatsAndDogs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	poll := &Poll{
		ID:         "poll-1",
		Title:      "Cats or Dogs?",
		IsActive:   true,
		TotalVotes: 3,
		Options: []Option{
			{ID: "dogs", Text: "Dogs", Order: 1, VoteCount: 1},
			{ID: "cats", Text: "Cats", Order: 0, VoteCount: 2},
		},
	}

	snap := BuildSnapshot(poll, now)

	require.Len(t, snap.Options, 2)
	assert.Equal(t, "poll-1", snap.PollID)
	assert.Equal(t, "Cats or Dogs?", snap.PollTitle)
	assert.Equal(t, int64(3), snap.TotalVotes)
	assert.Equal(t, "Cats", snap.Options[0].Text)
	assert.Equal(t, 66.67, snap.Options[0].Percentage)
	assert.Equal(t, "Dogs", snap.Options[1].Text)
	assert.Equal(t, 33.33, snap.Options[1].Percentage)
	assert.Equal(t, now, snap.LastUpdated)
	assert.True(t, snap.IsActive)
	assert.False(t, snap.IsExpired)

	// the input poll is left untouched
	assert.Equal(t, "Dogs", poll.Options[0].Text)
}

func TestBuildSnapshotPercentagesSumToHundred(t *testing.T) {
	tests := []struct {
		name   string
		counts []int64
	}{
		{name: "three way tie", counts: []int64{1, 1, 1}},
		{name: "seven way tie", counts: []int64{1, 1, 1, 1, 1, 1, 1}},
		{name: "one option takes all", counts: []int64{3, 0, 0}},
		{name: "uneven split", counts: []int64{2, 2, 3}},
		{name: "large counts", counts: []int64{1001, 333, 7, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poll := &Poll{ID: "poll-1"}
			for i, c := range tt.counts {
				poll.Options = append(poll.Options, Option{ID: fmt.Sprint(i), Text: fmt.Sprint(i), Order: i, VoteCount: c})
				poll.TotalVotes += c
			}

			snap := BuildSnapshot(poll, time.Now())

			var sum float64
			for _, o := range snap.Options {
				assert.GreaterOrEqual(t, o.Percentage, float64(0))
				assert.LessOrEqual(t, o.Percentage, float64(100))
				sum += o.Percentage
			}
			assert.InDelta(t, 100, sum, 0.01*float64(len(snap.Options)))
		})
	}
}

func TestBuildSnapshotNoVotes(t *testing.T) {
	poll := &Poll{
		ID: "poll-1",
		Options: []Option{
			{ID: "a", Text: "A", Order: 0},
			{ID: "b", Text: "B", Order: 1},
			{ID: "c", Text: "C", Order: 2},
		},
	}

	snap := BuildSnapshot(poll, time.Now())

	require.Len(t, snap.Options, 3)
	assert.Zero(t, snap.TotalVotes)
	for _, o := range snap.Options {
		assert.Zero(t, o.Percentage, o.Text)
	}
}

func TestBuildSnapshotOrdering(t *testing.T) {
	poll := &Poll{
		ID: "poll-1",
		Options: []Option{
			{ID: "c", Text: "Charlie", Order: 1},
			{ID: "b", Text: "Bravo", Order: 1},
			{ID: "a", Text: "Alpha", Order: 2},
			{ID: "z", Text: "Zulu", Order: 0},
		},
	}

	snap := BuildSnapshot(poll, time.Now())

	var texts []string
	for _, o := range snap.Options {
		texts = append(texts, o.Text)
	}
	assert.Equal(t, []string{"Zulu", "Bravo", "Charlie", "Alpha"}, texts)
}

func TestBuildSnapshotExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	poll := &Poll{ID: "poll-1", IsActive: true, ExpiresAt: &past}

	snap := BuildSnapshot(poll, now)

	assert.True(t, snap.IsExpired)
	assert.True(t, snap.IsActive)
	assert.NotNil(t, snap.Options)
}

func TestSnapshotClone(t *testing.T) {
	snap := &ResultSnapshot{PollID: "p", Options: []OptionResult{{ID: "a", VoteCount: 1}}}
	cp := snap.Clone()
	cp.Options[0].VoteCount = 99

	assert.Equal(t, int64(1), snap.Options[0].VoteCount)
}

func TestConsistencyReport(t *testing.T) {
	tests := []struct {
		name       string
		report     ConsistencyReport
		consistent bool
	}{
		{
			name:       "all agree",
			report:     ConsistencyReport{TotalVotes: 3, OptionSum: 3, LedgerCount: 3},
			consistent: true,
		},
		{
			name:       "total drifted",
			report:     ConsistencyReport{TotalVotes: 4, OptionSum: 3, LedgerCount: 3},
			consistent: false,
		},
		{
			name: "option drifted with equal sums",
			report: ConsistencyReport{TotalVotes: 2, OptionSum: 2, LedgerCount: 2,
				DriftedOptions: []OptionDrift{{OptionID: "a", Cached: 2, Counted: 1}}},
			consistent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.consistent, tt.report.Consistent())
			if tt.consistent {
				assert.NoError(t, tt.report.Fault())
				return
			}
			var fault *ConsistencyFault
			assert.ErrorAs(t, tt.report.Fault(), &fault)
		})
	}
}
