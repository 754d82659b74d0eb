package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrVenueUnavailable  = errors.New("venue unavailable")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidOrder      = errors.New("invalid order parameters")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrStaleOpportunity  = errors.New("opportunity no longer within tolerance")
	ErrLockHeld          = errors.New("lock already held")
)

// IsRetryable classifies an order or transport error. Only transient
// conditions (rate limits, unreachable venue) are worth another attempt;
// everything else aborts the leg immediately.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrVenueUnavailable)
}
