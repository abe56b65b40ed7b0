package domain

import (
	"time"
)

// Vote is an immutable ledger entry. Exactly one voter binding is populated:
// UserID for authenticated voters, or Address and/or Session for anonymous ones.
type Vote struct {
	ID        string    `json:"id"`
	PollID    string    `json:"poll_id"`
	OptionID  string    `json:"option_id"`
	UserID    string    `json:"user_id,omitempty"`
	Address   string    `json:"address,omitempty"`
	Session   string    `json:"session,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// VoteRequest is the body of a vote submission
type VoteRequest struct {
	OptionText string `json:"option_text"`
}

// VoteReceipt is returned after a vote has been recorded
type VoteReceipt struct {
	Message    string `json:"message"`
	VoteID     string `json:"vote_id"`
	OptionID   string `json:"option_id"`
	OptionText string `json:"option_text"`
}

// UserVote is a vote joined with its poll and option, used for per-user listings
type UserVote struct {
	ID         string    `json:"id"`
	PollID     string    `json:"poll_id"`
	PollTitle  string    `json:"poll_title"`
	OptionText string    `json:"option_text"`
	CreatedAt  time.Time `json:"created_at"`
}
