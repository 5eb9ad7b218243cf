package orderstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jcmexdev/order-worker/internal/domain"
)

// Memory is an in-process Repository for local runs and tests.
type Memory struct {
	mu     sync.RWMutex
	orders map[string]domain.StoredOrder
}

func NewMemory() *Memory {
	return &Memory{orders: make(map[string]domain.StoredOrder)}
}

func (m *Memory) Save(ctx context.Context, order domain.AssembledOrder) (domain.StoredOrder, error) {
	if err := ctx.Err(); err != nil {
		return domain.StoredOrder{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.orders[order.OrderID]; ok {
		existing.Created = false
		return existing, nil
	}

	stored := domain.StoredOrder{ID: uuid.NewString(), AssembledOrder: cloneOrder(order), Created: true}
	m.orders[order.OrderID] = stored
	return stored, nil
}

func (m *Memory) GetByOrderID(ctx context.Context, orderID string) (domain.StoredOrder, error) {
	if err := ctx.Err(); err != nil {
		return domain.StoredOrder{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.orders[orderID]
	if !ok {
		return domain.StoredOrder{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	stored.Created = false
	return stored, nil
}

// Len reports the number of stored orders.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

func cloneOrder(o domain.AssembledOrder) domain.AssembledOrder {
	o.Items = append([]domain.OrderLineItem(nil), o.Items...)
	return o
}
