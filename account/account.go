// Package account handles the signed-out account flows: requesting and
// confirming a password reset.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-vehicle-market/api"
	apperrors "github.com/jrsteele09/go-vehicle-market/internal/errors"
)

const (
	resetPath   = "/password-reset/"
	confirmPath = "/password-reset/confirm/"
)

var (
	ErrValidationFailed = apperrors.ErrValidationFailed
	ErrResetRejected    = errors.New("password reset rejected")
)

// RejectedError carries the server's explanation of a refused reset. It
// matches ErrResetRejected and unwraps to the underlying *api.StatusError.
type RejectedError struct {
	Message string
	Err     error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrResetRejected, e.Message)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrResetRejected
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

type Service struct {
	api *api.Client
}

func New(client *api.Client) *Service {
	return &Service{api: client}
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type confirmRequest struct {
	UIDB64   string `json:"uidb64" validate:"required"`
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type reply struct {
	Message string `json:"message"`
}

// RequestPasswordReset asks the server to email a reset link and returns its
// confirmation message.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	return s.post(ctx, resetPath, resetRequest{Email: email})
}

// ConfirmPasswordReset sets a new password using the uidb64 and token from
// the reset link.
func (s *Service) ConfirmPasswordReset(ctx context.Context, uidb64, token, password string) (string, error) {
	return s.post(ctx, confirmPath, confirmRequest{UIDB64: uidb64, Token: token, Password: password})
}

func (s *Service) post(ctx context.Context, path string, body any) (string, error) {
	if err := validate.Struct(body); err != nil {
		return "", fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	var out reply
	err := s.api.Do(ctx, api.Request{Method: http.MethodPost, Path: path, Body: body}, &out)
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) && statusErr.ClientError() {
		msg := api.Detail(statusErr.Body)
		if msg == "" {
			msg = http.StatusText(statusErr.Status)
		}
		return "", &RejectedError{Message: msg, Err: err}
	}
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())
