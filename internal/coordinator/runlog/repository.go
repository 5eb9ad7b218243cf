package runlog

import (
	"context"
	"errors"
)

// ErrNotFound is returned by GetLatest when no run was recorded for an order.
var ErrNotFound = errors.New("runlog: no entries")

// Repository persists run log entries. Save appends; it never updates.
type Repository interface {
	Save(ctx context.Context, entry *Entry) error
	GetLatest(ctx context.Context, orderID string) (*Entry, error)
}
