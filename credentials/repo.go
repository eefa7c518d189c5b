package credentials

import "context"

// Key names one persisted credential.
type Key string

const (
	AccessTokenKey  Key = "access_token"
	RefreshTokenKey Key = "refresh_token"
)

// Keys lists every credential a Repo may hold.
var Keys = []Key{AccessTokenKey, RefreshTokenKey}

// Repo is durable key-value storage for the token pair. It survives process
// restarts and is the source of truth when a session is restored.
type Repo interface {
	// Get returns nil when the key is absent.
	Get(ctx context.Context, key Key) (*string, error)

	// Upsert stores value under key.
	Upsert(ctx context.Context, key Key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key Key) error
}
