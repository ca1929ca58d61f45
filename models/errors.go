package models

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds used in API responses and internal error handling.
const (
	KindInvalidRequest = "invalid_request"
	KindInvalidURL     = "invalid_url"
	KindAuthRequired   = "authentication_required"
	KindRateLimited    = "rate_limited"
	KindBlocked        = "blocked"
	KindTimeout        = "timeout"
	KindNetwork        = "network"
	KindNotImplemented = "not_implemented"
	KindInternal       = "internal_error"
)

// PeelError is the internal error type carrying an error kind.
// It implements the error interface and supports error wrapping via Unwrap.
type PeelError struct {
	Kind    string
	Message string
	Err     error // wrapped original error
}

func (e *PeelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PeelError) Unwrap() error {
	return e.Err
}

// NewPeelError creates a new PeelError.
func NewPeelError(kind, message string, err error) *PeelError {
	return &PeelError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the error kind from any error. Errors that are not
// PeelErrors report as internal_error.
func KindOf(err error) string {
	var pe *PeelError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// AsPeelError unwraps err to its PeelError, if it carries one.
func AsPeelError(err error) (*PeelError, bool) {
	var pe *PeelError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind string) bool {
	return KindOf(err) == kind
}

// HTTPStatus translates an error kind to its default HTTP status code.
func HTTPStatus(kind string) int {
	switch kind {
	case KindInvalidRequest, KindInvalidURL:
		return http.StatusBadRequest // 400
	case KindAuthRequired:
		return http.StatusUnauthorized // 401
	case KindRateLimited:
		return http.StatusTooManyRequests // 429
	case KindBlocked, KindNetwork:
		return http.StatusBadGateway // 502
	case KindTimeout:
		return http.StatusGatewayTimeout // 504
	case KindNotImplemented:
		return http.StatusNotImplemented // 501
	default:
		return http.StatusInternalServerError // 500
	}
}

// ErrorEnvelope is the JSON error body returned by every failing endpoint.
type ErrorEnvelope struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}
