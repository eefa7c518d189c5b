package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the api, session and client packages. Public
// packages re-export the values they surface so errors.Is works across them.
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidationFailed   = errors.New("validation failed")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionChanged     = errors.New("session changed while request was in flight")
	ErrNoRefreshToken     = errors.New("no refresh token")

	// Transport errors
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
