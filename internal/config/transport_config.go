package config

import "time"

type TransportConfig interface {
	GetHTTPTimeout() time.Duration
	GetRateLimit() float64
	GetRateBurst() int
	GetBreakerTimeout() time.Duration
	GetBreakerMinRequests() uint32
	GetBreakerFailureRatio() float64
}

type Transport struct {
	HTTPTimeout         time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	RateLimit           float64       `env:"API_RATE_LIMIT" envDefault:"0" validate:"gte=0"` // requests per second, 0 disables
	RateBurst           int           `env:"API_RATE_BURST" envDefault:"5" validate:"gte=1"`
	BreakerTimeout      time.Duration `env:"BREAKER_TIMEOUT" envDefault:"30s"`
	BreakerMinRequests  uint32        `env:"BREAKER_MIN_REQUESTS" envDefault:"5"`
	BreakerFailureRatio float64       `env:"BREAKER_FAILURE_RATIO" envDefault:"0.5" validate:"gte=0,lte=1"`
}

var _ TransportConfig = Transport{}

func (t Transport) GetHTTPTimeout() time.Duration {
	return t.HTTPTimeout
}

func (t Transport) GetRateLimit() float64 {
	return t.RateLimit
}

func (t Transport) GetRateBurst() int {
	return t.RateBurst
}

// GetBreakerTimeout is how long the circuit breaker stays open; 0 disables the breaker.
func (t Transport) GetBreakerTimeout() time.Duration {
	return t.BreakerTimeout
}

func (t Transport) GetBreakerMinRequests() uint32 {
	return t.BreakerMinRequests
}

func (t Transport) GetBreakerFailureRatio() float64 {
	return t.BreakerFailureRatio
}
