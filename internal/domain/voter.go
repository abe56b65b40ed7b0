package domain

// VoterKind distinguishes the identity channel a voter was resolved through
type VoterKind int

const (
	VoterUnknown VoterKind = iota
	VoterUser
	VoterAnonymous
)

func (k VoterKind) String() string {
	switch k {
	case VoterUser:
		return "user"
	case VoterAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Claim prefixes used when a voter key is registered against a poll
const (
	claimUser    = "user:"
	claimAddress = "addr:"
	claimSession = "session:"
)

// VoterKey is the canonical identity a vote is deduplicated on.
// It is either User(id) or Anonymous(address, session) with at least one field set.
type VoterKey struct {
	kind    VoterKind
	userID  string
	address string
	session string
}

// UserVoter returns the key for an authenticated user
func UserVoter(userID string) VoterKey {
	return VoterKey{kind: VoterUser, userID: userID}
}

// AnonymousVoter returns the key for an unauthenticated voter.
// The zero key is returned when both address and session are empty.
func AnonymousVoter(address, session string) VoterKey {
	if address == "" && session == "" {
		return VoterKey{}
	}
	return VoterKey{kind: VoterAnonymous, address: address, session: session}
}

func (k VoterKey) Kind() VoterKind { return k.kind }
func (k VoterKey) UserID() string { return k.userID }
func (k VoterKey) Address() string { return k.address }
func (k VoterKey) Session() string { return k.session }
func (k VoterKey) IsZero() bool { return k.kind == VoterUnknown }

// Claims returns the identity claims registered for this key in a poll.
// Two keys collide when they share any claim: an anonymous voter is matched
// on address OR session independently.
func (k VoterKey) Claims() []string {
	switch k.kind {
	case VoterUser:
		return []string{claimUser + k.userID}
	case VoterAnonymous:
		claims := make([]string, 0, 2)
		if k.address != "" {
			claims = append(claims, claimAddress+k.address)
		}
		if k.session != "" {
			claims = append(claims, claimSession+k.session)
		}
		return claims
	default:
		return nil
	}
}

// Matches reports whether an existing vote was cast by this key
func (k VoterKey) Matches(v *Vote) bool {
	switch k.kind {
	case VoterUser:
		return v.UserID != "" && v.UserID == k.userID
	case VoterAnonymous:
		if v.UserID != "" {
			return false
		}
		if k.address != "" && v.Address == k.address {
			return true
		}
		return k.session != "" && v.Session == k.session
	default:
		return false
	}
}

// Bind writes the key's identity onto a new vote
func (k VoterKey) Bind(v *Vote) {
	switch k.kind {
	case VoterUser:
		v.UserID = k.userID
	case VoterAnonymous:
		v.Address = k.address
		v.Session = k.session
	}
}

// String is safe for logs; it never includes the raw address or session
func (k VoterKey) String() string {
	switch k.kind {
	case VoterUser:
		return "user:" + k.userID
	case VoterAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}
