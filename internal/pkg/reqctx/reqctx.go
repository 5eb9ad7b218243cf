// Package reqctx carries the request id through contexts and names the
// headers shared by the HTTP servers and the Kafka listener.
package reqctx

import (
	"context"

	"github.com/google/uuid"
)

// contextKey prevents collisions with keys from other packages.
type contextKey string

const (
	HeaderXRequestID = "x-request-id"

	// HeaderRedeliveryAttempt counts how many times an event was republished.
	HeaderRedeliveryAttempt = "x-redelivery-attempt"
	// HeaderFailureReason is set on dead-lettered events.
	HeaderFailureReason = "x-failure-reason"

	requestIDKey contextKey = HeaderXRequestID
)

// WithRequestID stores id in ctx. An empty id is replaced by a new UUID.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
