package session

import "github.com/jrsteele09/go-vehicle-market/users"

type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
	Refreshing
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SignedIn reports whether the state carries a validated identity.
func (s State) SignedIn() bool {
	return s == Authenticated || s == Refreshing
}

// Snapshot is a point-in-time copy of the session. User is nil unless signed in.
type Snapshot struct {
	State State       `json:"state" yaml:"state"`
	User  *users.User `json:"user,omitempty" yaml:"user,omitempty"`
}
