// Package metrics holds the prometheus collectors shared by the API transport
// and the session manager. A nil *Collectors is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

const namespace = "vehicle_market"

// Refresh outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type Collectors struct {
	RefreshTotal       *prometheus.CounterVec
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	BreakerState       *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refresh_total",
				Help:      "Access token refresh attempts by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of REST API calls",
			},
			[]string{"method", "status"},
		),
		APIRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "REST API call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}
	reg.MustRegister(c.RefreshTotal, c.APIRequestsTotal, c.APIRequestDuration, c.BreakerState)
	return c
}

// ObserveRequest records one API call. status 0 means no response was received.
func (c *Collectors) ObserveRequest(method string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.APIRequestsTotal.WithLabelValues(method, label).Inc()
	c.APIRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (c *Collectors) ObserveRefresh(trigger, outcome string) {
	if c == nil {
		return
	}
	c.RefreshTotal.WithLabelValues(trigger, outcome).Inc()
}

func (c *Collectors) SetBreakerState(name string, state gobreaker.State) {
	if c == nil {
		return
	}
	c.BreakerState.WithLabelValues(name).Set(stateToFloat(state))
}

// stateToFloat maps gobreaker states to prometheus gauge values.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
