package config

import "time"

type SessionConfig interface {
	GetRefreshInterval() time.Duration
	GetExpiryLeeway() time.Duration
}

type Session struct {
	RefreshInterval time.Duration `env:"SESSION_REFRESH_INTERVAL" envDefault:"1h" validate:"gt=0"`
	ExpiryLeeway    time.Duration `env:"SESSION_EXPIRY_LEEWAY" envDefault:"10s" validate:"gte=0"`
}

var _ SessionConfig = Session{}

// GetRefreshInterval is the period of the background access token renewal.
func (s Session) GetRefreshInterval() time.Duration {
	return s.RefreshInterval
}

// GetExpiryLeeway is how long before a JWT's exp claim the access token is
// treated as expired when handing it to a protected call.
func (s Session) GetExpiryLeeway() time.Duration {
	return s.ExpiryLeeway
}
