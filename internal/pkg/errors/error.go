// internal/pkg/errors/error.go
package xerrors

import (
	"errors"
	"net/http"
)

// Common application errors.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal server error")
	ErrRateLimited  = errors.New("too many requests")
)

// Usage and subscription errors.
var (
	ErrUnknownAction        = errors.New("unknown action")
	ErrInvalidPeriod        = errors.New("invalid period")
	ErrInvalidTier          = errors.New("invalid subscription tier")
	ErrSameTier             = errors.New("user is already on this tier")
	ErrCannotCancelFree     = errors.New("cannot cancel free subscription")
	ErrAlreadyCancelled     = errors.New("subscription already cancelled")
	ErrPaymentFailed        = errors.New("payment failed")
	ErrReasonRequired       = errors.New("a reason of at least 5 characters is required")
	ErrLimitExceeded        = errors.New("usage limit exceeded")
	ErrLimitMissing         = errors.New("no limit configured for tier")
	ErrAssistantUnavailable = errors.New("assistant unavailable")
)

func Is(err, target error) bool {
	return errors.Is(err, target)
}

// HTTPStatus maps an error to the status code handlers respond with.
// Anything unrecognised is a 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyCancelled):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrAssistantUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrUnknownAction),
		errors.Is(err, ErrInvalidPeriod),
		errors.Is(err, ErrInvalidTier),
		errors.Is(err, ErrSameTier),
		errors.Is(err, ErrCannotCancelFree),
		errors.Is(err, ErrPaymentFailed),
		errors.Is(err, ErrReasonRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
