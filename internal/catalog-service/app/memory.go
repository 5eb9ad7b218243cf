package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-worker/internal/domain"
)

// MemoryRepository is an in-process catalog for local runs and tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	customers map[string]domain.Customer
	products  map[string]domain.Product
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		customers: make(map[string]domain.Customer),
		products:  make(map[string]domain.Product),
	}
}

// NewSeededMemoryRepository returns the demo catalog: three products, and
// three customers of which customer-3 is inactive.
func NewSeededMemoryRepository(now time.Time) *MemoryRepository {
	r := NewMemoryRepository()
	for _, p := range []domain.Product{
		{ProductID: "product-1", Name: "Laptop HP Pavilion 15", Description: "Intel i7, 16GB RAM, 512GB SSD", Category: "Electronics", Price: decimal.RequireFromString("999.99"), Stock: 10, Active: true},
		{ProductID: "product-2", Name: "Mouse Logitech MX Master 3", Description: "Wireless ergonomic mouse", Category: "Accessories", Price: decimal.RequireFromString("29.99"), Stock: 50, Active: true},
		{ProductID: "product-3", Name: "Corsair K95 RGB", Description: "Mechanical keyboard", Category: "Accessories", Price: decimal.RequireFromString("79.99"), Stock: 25, Active: true},
	} {
		p.CreatedAt, p.UpdatedAt = now, now
		r.PutProduct(p)
	}
	for _, c := range []domain.Customer{
		{CustomerID: "customer-1", Name: "Juan Perez Garcia", Email: "juan.perez@example.com", Phone: "+51 987654321", Active: true},
		{CustomerID: "customer-2", Name: "Maria Garcia Lopez", Email: "maria.garcia@example.com", Phone: "+51 987654322", Active: true},
		{CustomerID: "customer-3", Name: "Pedro Lopez Martinez", Email: "pedro.lopez@example.com", Phone: "+51 987654323", Active: false},
	} {
		c.CreatedAt, c.UpdatedAt = now, now
		r.PutCustomer(c)
	}
	return r
}

func (r *MemoryRepository) PutCustomer(c domain.Customer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customers[c.CustomerID] = c
}

func (r *MemoryRepository) PutProduct(p domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ProductID] = p
}

func (r *MemoryRepository) GetCustomer(_ context.Context, customerID string) (domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.customers[customerID]
	if !ok {
		return domain.Customer{}, fmt.Errorf("%w: customer %s", ErrNotFound, customerID)
	}
	return c, nil
}

func (r *MemoryRepository) GetProduct(_ context.Context, productID string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[productID]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	return p, nil
}
