package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/jrsteele09/go-vehicle-market/api"
	"github.com/jrsteele09/go-vehicle-market/internal/utils"
	"github.com/jrsteele09/go-vehicle-market/users"
)

const (
	tokenPath    = "/token/"
	refreshPath  = "/token/refresh/"
	registerPath = "/register/"
	mePath       = "/me/"
	favoritePath = "/favorites/"
)

// tokenPair is the body of /token/, /token/refresh/ and, for some
// deployments, /register/. Absent tokens stay nil.
type tokenPair struct {
	Access  *string `json:"access,omitempty"`
	Refresh *string `json:"refresh,omitempty"`
}

func (m *Manager) requestTokens(ctx context.Context, identifier, password string) (tokenPair, error) {
	var pair tokenPair
	err := m.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   tokenPath,
		Body:   map[string]string{"username": identifier, "password": password},
	}, &pair)

	var statusErr *api.StatusError
	if errors.As(err, &statusErr) && statusErr.ClientError() {
		return tokenPair{}, fmt.Errorf("%w: %s", ErrInvalidCredentials, message(statusErr))
	}
	if err != nil {
		return tokenPair{}, err
	}
	return pair, nil
}

func (m *Manager) register(ctx context.Context, in signupInput) (tokenPair, error) {
	var pair tokenPair
	err := m.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   registerPath,
		Body: map[string]string{
			"username":   in.Name,
			"email":      in.Email,
			"password":   in.Password,
			"first_name": in.Name,
		},
	}, &pair)

	var statusErr *api.StatusError
	if errors.As(err, &statusErr) && statusErr.ClientError() {
		fields := api.ParseFieldErrors(statusErr.Body)
		if detail := api.Detail(statusErr.Body); len(fields) == 0 || detail != "" {
			fields = map[string][]string{"non_field_errors": {message(statusErr)}}
		}
		return tokenPair{}, &ValidationError{Fields: fields}
	}
	if err != nil {
		return tokenPair{}, err
	}
	return pair, nil
}

// exchangeRefresh trades the refresh token for a new access token. The
// refresh token itself is never rotated.
func (m *Manager) exchangeRefresh(ctx context.Context, refresh string) (string, error) {
	var pair tokenPair
	if err := m.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   refreshPath,
		Body:   map[string]string{"refresh": refresh},
	}, &pair); err != nil {
		return "", err
	}
	access := utils.Value(pair.Access)
	if access == "" {
		return "", errors.New("refresh response is missing the access token")
	}
	return access, nil
}

// fetchProfile resolves the identity behind exactly this access token.
func (m *Manager) fetchProfile(ctx context.Context, access string) (users.User, error) {
	var profile users.Profile
	if err := m.api.Do(ctx, api.Request{
		Method: http.MethodGet,
		Path:   mePath,
		Bearer: access,
	}, &profile); err != nil {
		return users.User{}, err
	}
	return users.FromProfile(profile), nil
}

func message(e *api.StatusError) string {
	if detail := api.Detail(e.Body); detail != "" {
		return detail
	}
	return http.StatusText(e.Status)
}

// jsonFieldName names validation failures after the request body fields.
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}
