package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-vehicle-market/credentials"
	"github.com/jrsteele09/go-vehicle-market/metrics"
)

// Refresh trigger label values.
const (
	triggerManual       = "manual"
	triggerTimer        = "timer"
	triggerStartup      = "startup"
	triggerUnauthorized = "unauthorized"
	triggerExpiry       = "expiry"
)

// Refresh renews the access token with the refresh token. Only the access
// token is replaced, in memory and in storage. Concurrent calls share one
// request.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err := m.renew(ctx, triggerManual)
	return err
}

// renew returns the new access token. The request runs detached from ctx so
// a caller giving up does not fail the others waiting on it.
func (m *Manager) renew(ctx context.Context, trigger string) (string, error) {
	m.mu.Lock()
	epoch, refresh, state := m.epoch, m.refresh, m.state
	m.mu.Unlock()
	if refresh == nil {
		if state == Anonymous {
			return "", ErrNotAuthenticated
		}
		return "", ErrNoRefreshToken
	}

	detached := context.WithoutCancel(ctx)
	ch := m.refreshGroup.DoChan(fmt.Sprintf("refresh-%d", epoch), func() (interface{}, error) {
		return m.runRefresh(detached, epoch, *refresh, trigger)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) runRefresh(ctx context.Context, epoch uint64, refresh, trigger string) (string, error) {
	m.mu.Lock()
	if m.epoch == epoch && m.state == Authenticated {
		m.state = Refreshing
		m.publishLocked()
	}
	m.mu.Unlock()

	access, err := m.exchangeRefresh(ctx, refresh)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		m.metrics.ObserveRefresh(trigger, metrics.OutcomeFailure)
		return "", ErrSessionChanged
	}
	if err == nil {
		if err = m.repo.Upsert(ctx, credentials.AccessTokenKey, access); err != nil {
			err = fmt.Errorf("persist access token: %w", err)
		}
	}
	if m.state == Refreshing {
		m.state = Authenticated
		m.publishLocked()
	}
	if err != nil {
		m.metrics.ObserveRefresh(trigger, metrics.OutcomeFailure)
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	m.access = &access
	m.metrics.ObserveRefresh(trigger, metrics.OutcomeSuccess)
	m.logger.Debug().Str("trigger", trigger).Msg("Access token refreshed")
	return access, nil
}

// startTimerLocked runs the background renewal for the current epoch.
func (m *Manager) startTimerLocked() {
	m.stopTimerLocked()
	if m.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.stopTimer = cancel
	m.timers.Add(1)
	go func() {
		defer m.timers.Done()
		ticker := time.NewTicker(m.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.timerTick(ctx)
			}
		}
	}()
}

func (m *Manager) stopTimerLocked() {
	if m.stopTimer != nil {
		m.stopTimer()
		m.stopTimer = nil
	}
}

// timerTick never changes the session on failure. The current access token
// stays in use until a protected call finds it rejected.
func (m *Manager) timerTick(ctx context.Context) {
	if _, err := m.renew(ctx, triggerTimer); err != nil && ctx.Err() == nil {
		m.logger.Warn().Err(err).Msg("Background token refresh failed")
	}
}
