package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-vehicle-market/api"
	"golang.org/x/oauth2"
)

var _ oauth2.TokenSource = (*Manager)(nil)

// Token implements oauth2.TokenSource. A JWT access token whose exp claim
// has passed is renewed first when a refresh token is held. Opaque tokens are
// handed out as is.
func (m *Manager) Token() (*oauth2.Token, error) {
	m.mu.Lock()
	access, canRefresh := m.access, m.refresh != nil
	m.mu.Unlock()
	if access == nil {
		return nil, ErrNotAuthenticated
	}

	expiry := accessExpiry(*access)
	if canRefresh && !expiry.IsZero() && !m.nowTime().Add(m.expiryLeeway).Before(expiry) {
		renewed, err := m.renew(context.Background(), triggerExpiry)
		if err != nil {
			return nil, renewalError(err)
		}
		access = &renewed
		expiry = accessExpiry(renewed)
	}
	return &oauth2.Token{AccessToken: *access, TokenType: "Bearer", Expiry: expiry}, nil
}

// accessExpiry reads the exp claim without verifying the signature; the
// server remains the authority on validity. Zero when unknown.
func accessExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// HTTPClient returns a client that authorizes requests with the session's
// access token. A 401 response triggers one refresh and one replay; when no
// refresh is possible the session is expired and ErrSessionExpired returned.
func (m *Manager) HTTPClient() *http.Client {
	return m.httpClient
}

func (m *Manager) newHTTPClient() *http.Client {
	base := m.api.HTTPClient()
	return &http.Client{
		Timeout: base.Timeout,
		Transport: &reauthTransport{
			m:    m,
			next: &oauth2.Transport{Source: m, Base: base.Transport},
		},
	}
}

type reauthTransport struct {
	m    *Manager
	next http.RoundTripper
}

func (t *reauthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.m.mu.Lock()
	epoch := t.m.epoch
	t.m.mu.Unlock()

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			t.m.expire(epoch)
		}
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}
	discard(resp)

	if _, err := t.m.renew(req.Context(), triggerUnauthorized); err != nil {
		err = renewalError(err)
		if errors.Is(err, ErrSessionExpired) {
			t.m.expire(epoch)
		}
		return nil, err
	}

	replay := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replay %s %s: %w", req.Method, req.URL.Path, err)
		}
		replay.Body = body
	}
	resp, err = t.next.RoundTrip(replay)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		discard(resp)
		t.m.expire(epoch)
		return nil, fmt.Errorf("%w: %s %s rejected after token renewal", ErrSessionExpired, req.Method, req.URL.Path)
	}
	return resp, nil
}

// renewalError marks failures that leave no usable refresh path as
// ErrSessionExpired. Network failures are returned as they are.
func renewalError(err error) error {
	var statusErr *api.StatusError
	switch {
	case errors.Is(err, ErrNoRefreshToken),
		errors.As(err, &statusErr) && statusErr.ClientError():
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	return err
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()
}
