package domain

import (
	"sort"
	"strings"
	"time"
)

// Poll represents a question with a fixed set of options
type Poll struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	CreatorID          string     `json:"creator_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	IsActive           bool       `json:"is_active"`
	AllowMultipleVotes bool       `json:"allow_multiple_votes"`
	TotalVotes         int64      `json:"total_votes"`
	Options            []Option   `json:"options"`
}

// Option represents a single choice within a poll
type Option struct {
	ID        string `json:"id"`
	PollID    string `json:"-"`
	Text      string `json:"text"`
	Order     int    `json:"order"`
	VoteCount int64  `json:"vote_count"`
}

// PollDetail is a poll as seen by a specific requester
type PollDetail struct {
	*Poll
	IsExpired    bool `json:"is_expired"`
	CanVote      bool `json:"can_vote"`
	UserHasVoted bool `json:"user_has_voted"`
}

// IsExpired reports whether the poll had an expiry time that has passed
func (p *Poll) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

// CanVote reports whether the poll currently accepts votes
func (p *Poll) CanVote(now time.Time) bool {
	return p.IsActive && !p.IsExpired(now)
}

// FindOption looks up an option by text, ignoring case and surrounding whitespace
func (p *Poll) FindOption(text string) (*Option, bool) {
	text = strings.TrimSpace(text)
	for i := range p.Options {
		if strings.EqualFold(p.Options[i].Text, text) {
			return &p.Options[i], true
		}
	}
	return nil, false
}

// OptionByID returns the option with the given id
func (p *Poll) OptionByID(id string) (*Option, bool) {
	for i := range p.Options {
		if p.Options[i].ID == id {
			return &p.Options[i], true
		}
	}
	return nil, false
}

// OptionTexts returns the option texts in display order
func (p *Poll) OptionTexts() []string {
	texts := make([]string, 0, len(p.Options))
	for _, opt := range p.Options {
		texts = append(texts, opt.Text)
	}
	return texts
}

// SortOptions orders options by display order, then text
func (p *Poll) SortOptions() {
	sort.SliceStable(p.Options, func(i, j int) bool {
		if p.Options[i].Order != p.Options[j].Order {
			return p.Options[i].Order < p.Options[j].Order
		}
		return p.Options[i].Text < p.Options[j].Text
	})
}

// Clone returns a deep copy of the poll
func (p *Poll) Clone() *Poll {
	cp := *p
	if p.ExpiresAt != nil {
		exp := *p.ExpiresAt
		cp.ExpiresAt = &exp
	}
	cp.Options = make([]Option, len(p.Options))
	copy(cp.Options, p.Options)
	return &cp
}

// Validate checks the fields a poll needs before it can be stored
func (p *Poll) Validate() error {
	title := strings.TrimSpace(p.Title)
	if len(title) < 5 || len(title) > 200 {
		return &ValidationError{Field: "title", Message: "Title must be between 5 and 200 characters."}
	}
	if len(p.Options) < 2 {
		return &ValidationError{Field: "options", Message: "A poll needs at least two options."}
	}
	seen := make(map[string]bool, len(p.Options))
	for _, opt := range p.Options {
		text := strings.ToLower(strings.TrimSpace(opt.Text))
		if text == "" {
			return &ValidationError{Field: "options", Message: "Option text cannot be empty."}
		}
		if seen[text] {
			return &ValidationError{Field: "options", Message: "Option texts must be unique within a poll."}
		}
		seen[text] = true
	}
	return nil
}

// PollFilter narrows a poll listing. Zero fields match everything.
type PollFilter struct {
	IsActive    *bool
	CreatorID   string
	Search      string // case-insensitive substring of title or description
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// Matches reports whether p passes every set field of the filter
func (f PollFilter) Matches(p *Poll) bool {
	if f.IsActive != nil && p.IsActive != *f.IsActive {
		return false
	}
	if f.CreatorID != "" && p.CreatorID != f.CreatorID {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Title), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			return false
		}
	}
	if f.CreatedFrom != nil && p.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && p.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	return true
}
