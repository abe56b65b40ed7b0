package service

import (
	"strings"

	"votecore/internal/domain"
)

// RequestIdentity is what a request tells us about who is voting
type RequestIdentity struct {
	UserID  string // set only when a bearer token was verified
	Address string
	Session string
}

// ResolveVoter derives the canonical voter key for a request.
// An authenticated user always wins over the anonymous channels.
func ResolveVoter(id RequestIdentity) (domain.VoterKey, error) {
	if userID := strings.TrimSpace(id.UserID); userID != "" {
		return domain.UserVoter(userID), nil
	}

	key := domain.AnonymousVoter(strings.TrimSpace(id.Address), strings.TrimSpace(id.Session))
	if key.IsZero() {
		return domain.VoterKey{}, domain.ErrUnidentifiableVoter
	}
	return key, nil
}
