package session

import (
	"context"
	"net/http"
	"strconv"

	"github.com/jrsteele09/go-vehicle-market/api"
)

type favoriteResponse struct {
	Status string `json:"status"`
}

// ToggleFavorite flips vehicleID in the user's favourites and reports whether
// it is now a favourite. The cached set changes only after the server
// confirmed the toggle.
func (m *Manager) ToggleFavorite(ctx context.Context, vehicleID string) (bool, error) {
	epoch, err := m.signedInEpoch()
	if err != nil {
		return false, err
	}

	body := map[string]any{"vehicle_id": vehicleID}
	if n, convErr := strconv.Atoi(vehicleID); convErr == nil {
		body["vehicle_id"] = n
	}
	var resp favoriteResponse
	if err := m.api.Do(ctx, api.Request{
		Method:     http.MethodPost,
		Path:       favoritePath,
		Body:       body,
		HTTPClient: m.httpClient,
	}, &resp); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch || m.user == nil {
		return false, ErrSessionChanged
	}
	var added bool
	switch resp.Status {
	case "added":
		m.user.Favorites[vehicleID] = struct{}{}
		added = true
	case "removed":
		delete(m.user.Favorites, vehicleID)
	default:
		added = m.user.Favorites.Toggle(vehicleID)
	}
	m.publishLocked()
	return added, nil
}

// DeleteAccount removes the signed-in account on the server and logs out.
func (m *Manager) DeleteAccount(ctx context.Context) error {
	if _, err := m.signedInEpoch(); err != nil {
		return err
	}
	if err := m.api.Do(ctx, api.Request{
		Method:     http.MethodDelete,
		Path:       mePath,
		HTTPClient: m.httpClient,
	}, nil); err != nil {
		return err
	}
	m.logger.Info().Msg("Account deleted")
	m.Logout()
	return nil
}

func (m *Manager) signedInEpoch() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.SignedIn() || m.user == nil {
		return 0, ErrNotAuthenticated
	}
	return m.epoch, nil
}
