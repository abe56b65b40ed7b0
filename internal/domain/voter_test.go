package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnonymousVoterZero(t *testing.T) {
	assert.True(t, AnonymousVoter("", "").IsZero())
	assert.Nil(t, AnonymousVoter("", "").Claims())
	assert.Equal(t, VoterUnknown, AnonymousVoter("", "").Kind())
	assert.Equal(t, VoterAnonymous, AnonymousVoter("10.0.0.1", "").Kind())
	assert.Equal(t, VoterAnonymous, AnonymousVoter("", "sess").Kind())
	assert.Equal(t, "user", UserVoter("u1").Kind().String())
}

func TestVoterKeyClaims(t *testing.T) {
	tests := []struct {
		name string
		key  VoterKey
		want []string
	}{
		{name: "user", key: UserVoter("u1"), want: []string{"user:u1"}},
		{name: "address only", key: AnonymousVoter("1.2.3.4", ""), want: []string{"addr:1.2.3.4"}},
		{name: "session only", key: AnonymousVoter("", "s1"), want: []string{"session:s1"}},
		{name: "both", key: AnonymousVoter("1.2.3.4", "s1"), want: []string{"addr:1.2.3.4", "session:s1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.Claims())
		})
	}
}

func TestVoterKeyMatches(t *testing.T) {
	anonVote := &Vote{Address: "1.2.3.4", Session: "s1"}
	userVote := &Vote{UserID: "u1", Address: "1.2.3.4"}

	tests := []struct {
		name string
		key  VoterKey
		vote *Vote
		want bool
	}{
		{name: "same user", key: UserVoter("u1"), vote: userVote, want: true},
		{name: "other user", key: UserVoter("u2"), vote: userVote, want: false},
		{name: "user never matches anonymous vote", key: UserVoter("u1"), vote: anonVote, want: false},
		{name: "same address new session", key: AnonymousVoter("1.2.3.4", "s2"), vote: anonVote, want: true},
		{name: "same session new address", key: AnonymousVoter("5.6.7.8", "s1"), vote: anonVote, want: true},
		{name: "neither matches", key: AnonymousVoter("5.6.7.8", "s2"), vote: anonVote, want: false},
		{name: "anonymous never matches user vote", key: AnonymousVoter("1.2.3.4", ""), vote: userVote, want: false},
		{name: "empty session does not match empty session", key: AnonymousVoter("9.9.9.9", ""), vote: &Vote{Address: "1.1.1.1"}, want: false},
		{name: "zero key", key: VoterKey{}, vote: anonVote, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.Matches(tt.vote))
		})
	}
}

func TestVoterKeyBindAndString(t *testing.T) {
	v := &Vote{}
	AnonymousVoter("1.2.3.4", "s1").Bind(v)
	assert.Equal(t, "1.2.3.4", v.Address)
	assert.Equal(t, "s1", v.Session)
	assert.Empty(t, v.UserID)

	u := &Vote{}
	UserVoter("u1").Bind(u)
	assert.Equal(t, "u1", u.UserID)
	assert.Empty(t, u.Address)

	assert.Equal(t, "anonymous", AnonymousVoter("1.2.3.4", "s1").String())
	assert.Equal(t, "user:u1", UserVoter("u1").String())
}

func TestAdmit(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	never := RegistryFunc(func(ctx context.Context, pollID string, key VoterKey) (bool, error) {
		return false, nil
	})
	always := RegistryFunc(func(ctx context.Context, pollID string, key VoterKey) (bool, error) {
		return true, nil
	})
	broken := RegistryFunc(func(ctx context.Context, pollID string, key VoterKey) (bool, error) {
		return false, errors.New("store down")
	})

	tests := []struct {
		name       string
		poll       Poll
		key        VoterKey
		registry   VoterRegistry
		wantReason EligibilityReason
		wantErr    error
	}{
		{name: "eligible", poll: Poll{IsActive: true, ExpiresAt: &future}, key: UserVoter("u1"), registry: never},
		{name: "expired", poll: Poll{IsActive: true, ExpiresAt: &past}, key: UserVoter("u1"), registry: never, wantReason: ReasonPollExpired},
		{name: "expired wins over inactive", poll: Poll{IsActive: false, ExpiresAt: &past}, key: UserVoter("u1"), registry: never, wantReason: ReasonPollExpired},
		{name: "inactive", poll: Poll{IsActive: false}, key: UserVoter("u1"), registry: never, wantReason: ReasonPollInactive},
		{name: "already voted", poll: Poll{IsActive: true}, key: UserVoter("u1"), registry: always, wantReason: ReasonAlreadyVoted},
		{name: "multiple votes skip registry", poll: Poll{IsActive: true, AllowMultipleVotes: true}, key: UserVoter("u1"), registry: always},
		{name: "unidentifiable", poll: Poll{IsActive: true, AllowMultipleVotes: true}, key: VoterKey{}, registry: never, wantErr: ErrUnidentifiableVoter},
		{name: "expired before identity", poll: Poll{IsActive: true, ExpiresAt: &past}, key: VoterKey{}, registry: never, wantReason: ReasonPollExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Admit(context.Background(), &tt.poll, tt.key, now, tt.registry)
			switch {
			case tt.wantReason != "":
				require.Error(t, err)
				assert.True(t, IsEligibilityReason(err, tt.wantReason), "got %v", err)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				assert.NoError(t, err)
			}
		})
	}

	t.Run("registry failure", func(t *testing.T) {
		err := Admit(context.Background(), &Poll{IsActive: true}, UserVoter("u1"), now, broken)
		require.Error(t, err)
		var eligibility *EligibilityError
		assert.False(t, errors.As(err, &eligibility))
	})
}

func TestEligibilityMessages(t *testing.T) {
	assert.Equal(t, "This poll has expired.", NewEligibilityError(ReasonPollExpired).Error())
	assert.Equal(t, "This poll is not currently active.", NewEligibilityError(ReasonPollInactive).Error())
	assert.Equal(t, "You have already voted in this poll.", NewEligibilityError(ReasonAlreadyVoted).Error())
}
