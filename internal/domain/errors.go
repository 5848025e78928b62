package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrNetwork                = errors.New("network error")
	ErrNotFound               = errors.New("not found")
	ErrStockExceeded          = errors.New("requested quantity exceeds stock")
	ErrSyncDrift              = errors.New("local and remote carts diverged")
	ErrItemNotInCart          = errors.New("item not found in cart")
)

// ServerError is a non-success status returned by a collaborator.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Body)
}

// ValidationError carries a message meant for the customer, e.g. an invalid coupon.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsRetryable reports whether a write should be attempted again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNetwork) {
		return true
	}
	var se *ServerError
	if errors.As(err, &se) {
		return se.Status >= http.StatusInternalServerError || se.Status == http.StatusTooManyRequests
	}
	return false
}

// StatusOf maps known errors to an HTTP status code, 0 when unknown.
func StatusOf(err error) int {
	var se *ServerError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &se):
		return se.Status
	case errors.Is(err, ErrAuthenticationRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrItemNotInCart):
		return http.StatusNotFound
	case errors.Is(err, ErrStockExceeded):
		return http.StatusConflict
	}
	return 0
}
