package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	apperrors "github.com/jrsteele09/go-vehicle-market/internal/errors"
)

var (
	ErrNetworkUnavailable = apperrors.ErrNetworkUnavailable
	ErrUnauthorized       = apperrors.ErrUnauthorized
	ErrForbidden          = apperrors.ErrForbidden
	ErrNotFound           = apperrors.ErrNotFound
	ErrValidationFailed   = apperrors.ErrValidationFailed
)

// StatusError is returned for every non-2xx response. Body holds at most
// maxErrorBody bytes of the raw response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	msg := Detail(e.Body)
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, msg)
}

// Is maps well known statuses onto the shared sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// ClientError reports whether the server rejected the request itself (4xx).
func (e *StatusError) ClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// Detail extracts the human readable message from an error body. The remote
// API uses {"detail": ...} for auth failures and {"error": ...} elsewhere.
func Detail(body []byte) string {
	var payload struct {
		Detail  string `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	switch {
	case payload.Detail != "":
		return payload.Detail
	case payload.Error != "":
		return payload.Error
	default:
		return payload.Message
	}
}

// ParseFieldErrors decodes a field-error map such as
// {"email": ["already registered"], "password": "too short"}. Non-list
// values become single-message lists; nested objects are kept as raw JSON.
func ParseFieldErrors(body []byte) map[string][]string {
	var raw map[string]json.RawMessage
	if json.Unmarshal(body, &raw) != nil || len(raw) == 0 {
		return nil
	}

	fields := make(map[string][]string, len(raw))
	for field, value := range raw {
		var list []string
		if json.Unmarshal(value, &list) == nil {
			fields[field] = list
			continue
		}
		var single string
		if json.Unmarshal(value, &single) == nil {
			fields[field] = []string{single}
			continue
		}
		fields[field] = []string{string(value)}
	}
	return fields
}

// FormatFieldErrors renders one "field: m1, m2" line per field, sorted by field.
func FormatFieldErrors(fields map[string][]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %s", name, strings.Join(fields[name], ", ")))
	}
	return strings.Join(lines, "\n")
}
