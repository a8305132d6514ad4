package session

import "time"

// State is the lifecycle position of the session.
type State int

const (
	Uninitialized State = iota
	Hydrating
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Hydrating:
		return "hydrating"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// TokenKey is the storage key holding the bearer token.
const TokenKey = "token"

// UserProfile is the account returned by GET /me. It is replaced wholesale on
// every fetch.
type UserProfile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// Snapshot is an immutable copy of the session published to subscribers.
type Snapshot struct {
	State         State
	Token         string
	User          *UserProfile
	Authenticated bool
	Loading       bool
	// ExpiresAt is the token's exp claim, zero when absent or undecodable.
	// Display only.
	ExpiresAt time.Time
}

// Result is the outcome of an auth call. Operations never return errors for
// backend failures; they report them here.
type Result struct {
	Success bool
	Message string
	Data    any
}
