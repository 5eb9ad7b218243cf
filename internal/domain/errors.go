package domain

import "errors"

var (
	ErrLockUnavailable   = errors.New("lock not acquired")
	ErrUpstreamNotFound  = errors.New("upstream record not found")
	ErrUpstreamTransient = errors.New("upstream temporarily unavailable")
	ErrUpstreamRejected  = errors.New("upstream rejected request")
	ErrIncompleteOrder   = errors.New("incomplete product set")
	ErrCustomerInactive  = errors.New("customer inactive")
	ErrPersistence       = errors.New("order persistence failed")
	ErrMalformedMessage  = errors.New("malformed message")
	ErrOrderNotFound     = errors.New("order not found")
)

// Retryable reports whether err describes a condition that may succeed when the
// same event is processed again later.
func Retryable(err error) bool {
	return errors.Is(err, ErrLockUnavailable) ||
		errors.Is(err, ErrUpstreamTransient) ||
		errors.Is(err, ErrPersistence)
}
