package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catsAndDogs() *Poll {
	return &Poll{
		ID:       "poll-1",
		Title:    "Cats or Dogs?",
		IsActive: true,
		Options: []Option{
			{ID: "cats", Text: "Cats", Order: 0},
			{ID: "dogs", Text: "Dogs", Order: 1},
		},
	}
}

func TestFindOption(t *testing.T) {
	poll := catsAndDogs()

	tests := []struct {
		text   string
		wantID string
	}{
		{text: "Cats", wantID: "cats"},
		{text: "cats", wantID: "cats"},
		{text: "  DOGS ", wantID: "dogs"},
		{text: "Birds"},
		{text: ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			opt, ok := poll.FindOption(tt.text)
			if tt.wantID == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantID, opt.ID)
		})
	}
}

func TestInvalidOptionError(t *testing.T) {
	err := &InvalidOptionError{Available: catsAndDogs().OptionTexts()}
	assert.Equal(t, "Invalid option. Available options: Cats, Dogs", err.Error())
	assert.True(t, errors.Is(err, ErrOptionNotFound))
}

func TestPollExpiryAndCanVote(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	open := catsAndDogs()
	assert.False(t, open.IsExpired(now))
	assert.True(t, open.CanVote(now))

	expired := catsAndDogs()
	expired.ExpiresAt = &past
	assert.True(t, expired.IsExpired(now))
	assert.False(t, expired.CanVote(now))

	inactive := catsAndDogs()
	inactive.IsActive = false
	inactive.ExpiresAt = &future
	assert.False(t, inactive.IsExpired(now))
	assert.False(t, inactive.CanVote(now))
}

func TestPollCloneIsDeep(t *testing.T) {
	exp := time.Now()
	poll := catsAndDogs()
	poll.ExpiresAt = &exp

	cp := poll.Clone()
	cp.Options[0].VoteCount = 10
	*cp.ExpiresAt = exp.Add(time.Hour)

	assert.Zero(t, poll.Options[0].VoteCount)
	assert.Equal(t, exp, *poll.ExpiresAt)
}

func TestPollValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(p *Poll)
		wantField string
	}{
		{name: "valid", mutate: func(p *Poll) {}},
		{name: "short title", mutate: func(p *Poll) { p.Title = "Hey" }, wantField: "title"},
		{name: "long title", mutate: func(p *Poll) { p.Title = strings.Repeat("x", 201) }, wantField: "title"},
		{name: "one option", mutate: func(p *Poll) { p.Options = p.Options[:1] }, wantField: "options"},
		{name: "empty option", mutate: func(p *Poll) { p.Options[1].Text = "  " }, wantField: "options"},
		{name: "duplicate option ignoring case", mutate: func(p *Poll) { p.Options[1].Text = "CATS" }, wantField: "options"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poll := catsAndDogs()
			tt.mutate(poll)

			err := poll.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestPollFilterMatches(t *testing.T) {
	created := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	poll := &Poll{
		Title:       "Cats or Dogs?",
		Description: "Settle the household debate",
		CreatorID:   "u1",
		CreatedAt:   created,
		IsActive:    true,
	}
	yes, no := true, false
	before, after := created.Add(-time.Hour), created.Add(time.Hour)

	tests := []struct {
		name   string
		filter PollFilter
		want   bool
	}{
		{name: "empty filter", want: true},
		{name: "active", filter: PollFilter{IsActive: &yes}, want: true},
		{name: "inactive", filter: PollFilter{IsActive: &no}, want: false},
		{name: "creator", filter: PollFilter{CreatorID: "u1"}, want: true},
		{name: "other creator", filter: PollFilter{CreatorID: "u2"}, want: false},
		{name: "search title", filter: PollFilter{Search: "dogs"}, want: true},
		{name: "search description", filter: PollFilter{Search: "HOUSEHOLD"}, want: true},
		{name: "search miss", filter: PollFilter{Search: "birds"}, want: false},
		{name: "inside range", filter: PollFilter{CreatedFrom: &before, CreatedTo: &after}, want: true},
		{name: "bounds are inclusive", filter: PollFilter{CreatedFrom: &created, CreatedTo: &created}, want: true},
		{name: "from after creation", filter: PollFilter{CreatedFrom: &after}, want: false},
		{name: "to before creation", filter: PollFilter{CreatedTo: &before}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(poll))
		})
	}
}
