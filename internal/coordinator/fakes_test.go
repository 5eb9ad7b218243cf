package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-worker/internal/coordinator/runlog"
	"github.com/jcmexdev/order-worker/internal/domain"
	"github.com/jcmexdev/order-worker/internal/pkg/lock"
)

type fakeCatalog struct {
	customers   map[string]domain.Customer
	products    map[string]domain.Product
	customerErr error
	productErrs map[string]error

	onCustomer func(ctx context.Context, id string)

	customerCalls atomic.Int32
	productCalls  atomic.Int32
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		customers: map[string]domain.Customer{
			"customer-1": {CustomerID: "customer-1", Name: "Juan Perez", Email: "juan.perez@example.com", Active: true},
			"customer-3": {CustomerID: "customer-3", Name: "Carlos Lopez", Email: "carlos@example.com", Active: false},
		},
		products: map[string]domain.Product{
			"product-1": {ProductID: "product-1", Name: "Laptop", Description: "i7", Price: decimal.RequireFromString("999.99"), Active: true},
			"product-2": {ProductID: "product-2", Name: "Mouse", Description: "wireless", Price: decimal.RequireFromString("29.99"), Active: true},
		},
		productErrs: map[string]error{},
	}
}

func (f *fakeCatalog) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	f.customerCalls.Add(1)
	if f.onCustomer != nil {
		f.onCustomer(ctx, id)
	}
	if f.customerErr != nil {
		return domain.Customer{}, f.customerErr
	}
	c, ok := f.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrUpstreamNotFound
	}
	return c, nil
}

func (f *fakeCatalog) GetProduct(_ context.Context, id string) (domain.Product, error) {
	f.productCalls.Add(1)
	if err := f.productErrs[id]; err != nil {
		return domain.Product{}, err
	}
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, domain.ErrUpstreamNotFound
	}
	return p, nil
}

// fakeLocker grants every acquisition unless deny is set.
type fakeLocker struct {
	deny bool

	mu               sync.Mutex
	acquired         int
	released         int
	releaseCtxClosed bool
}

func (l *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (lock.Handle, bool) {
	return l.AcquireWithRetry(ctx, key, ttl, 1, 0)
}

func (l *fakeLocker) AcquireWithRetry(_ context.Context, key string, ttl time.Duration, _ int, _ time.Duration) (lock.Handle, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deny {
		return lock.Handle{}, false
	}
	l.acquired++
	return lock.Handle{Key: key, Token: "token", Expiry: time.Now().Add(ttl)}, true
}

func (l *fakeLocker) Release(ctx context.Context, _ lock.Handle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released++
	l.releaseCtxClosed = ctx.Err() != nil
	return true
}

func (l *fakeLocker) counts() (acquired, released int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquired, l.released
}

type failingStore struct {
	calls atomic.Int32
}

func (s *failingStore) Save(context.Context, domain.AssembledOrder) (domain.StoredOrder, error) {
	s.calls.Add(1)
	return domain.StoredOrder{}, errors.New("connection reset")
}

func (s *failingStore) GetByOrderID(context.Context, string) (domain.StoredOrder, error) {
	return domain.StoredOrder{}, domain.ErrOrderNotFound
}

type memoryRunLog struct {
	mu      sync.Mutex
	entries []runlog.Entry
}

func (m *memoryRunLog) Save(_ context.Context, e *runlog.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memoryRunLog) GetLatest(_ context.Context, orderID string) (*runlog.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].OrderID == orderID {
			e := m.entries[i]
			return &e, nil
		}
	}
	return nil, runlog.ErrNotFound
}

func (m *memoryRunLog) states(orderID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		if e.OrderID == orderID {
			out = append(out, e.State)
		}
	}
	return out
}
