package catalogclient

import (
	"fmt"

	"github.com/jcmexdev/order-worker/internal/domain"
)

// Error describes a failed catalog request. It matches exactly one of
// domain.ErrUpstreamNotFound, domain.ErrUpstreamTransient or
// domain.ErrUpstreamRejected under errors.Is.
type Error struct {
	Resource   string
	ID         string
	StatusCode int
	Err        error
	kind       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("catalog: get %s %q: %v", e.Resource, e.ID, e.kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying transport or decode error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the classification sentinel.
func (e *Error) Is(target error) bool {
	return e != nil && target == e.kind
}

// NotFound reports whether the remote service has no record for the id.
func (e *Error) NotFound() bool {
	return e != nil && e.kind == domain.ErrUpstreamNotFound
}

// Temporary reports whether repeating the request may succeed.
func (e *Error) Temporary() bool {
	return e != nil && e.kind == domain.ErrUpstreamTransient
}

func notFound(resource, id string, status int) *Error {
	return &Error{Resource: resource, ID: id, StatusCode: status, kind: domain.ErrUpstreamNotFound}
}

func transient(resource, id string, status int, err error) *Error {
	return &Error{Resource: resource, ID: id, StatusCode: status, Err: err, kind: domain.ErrUpstreamTransient}
}

func rejected(resource, id string, status int, err error) *Error {
	return &Error{Resource: resource, ID: id, StatusCode: status, Err: err, kind: domain.ErrUpstreamRejected}
}

func isRetryable(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Temporary()
}
