package session

import (
	"github.com/jrsteele09/go-vehicle-market/api"
	apperrors "github.com/jrsteele09/go-vehicle-market/internal/errors"
)

var (
	ErrInvalidCredentials = apperrors.ErrInvalidCredentials
	ErrValidationFailed   = apperrors.ErrValidationFailed
	ErrNetworkUnavailable = apperrors.ErrNetworkUnavailable
	ErrSessionExpired     = apperrors.ErrSessionExpired
	ErrSessionChanged     = apperrors.ErrSessionChanged
	ErrNotAuthenticated   = apperrors.ErrNotAuthenticated
	ErrNoRefreshToken     = apperrors.ErrNoRefreshToken
)

// ValidationError carries the per-field messages of a rejected registration.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	return "validation failed:\n" + api.FormatFieldErrors(e.Fields)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
