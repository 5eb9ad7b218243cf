// Package orderstore persists assembled orders.
package orderstore

import (
	"context"

	"github.com/jcmexdev/order-worker/internal/domain"
)

// Repository is the port the pipeline and the ops API depend on.
//
// Save inserts one record atomically. When a record with the same OrderID
// already exists, Save returns that record with Created set to false and a
// nil error. GetByOrderID returns domain.ErrOrderNotFound for unknown ids.
type Repository interface {
	Save(ctx context.Context, order domain.AssembledOrder) (domain.StoredOrder, error)
	GetByOrderID(ctx context.Context, orderID string) (domain.StoredOrder, error)
}
