// Package app serves customer and product snapshots with a read-through cache.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jcmexdev/order-worker/internal/domain"
	"github.com/jcmexdev/order-worker/internal/pkg/cache"
)

// ErrNotFound is returned when the store has no record for an id.
var ErrNotFound = errors.New("catalog: record not found")

// Repository is the catalog store.
type Repository interface {
	GetCustomer(ctx context.Context, customerID string) (domain.Customer, error)
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
}

// Service reads through an optional cache. Misses and store errors are never
// cached; cache faults fall back to the store.
type Service struct {
	repo  Repository
	cache cache.Cache
	ttl   time.Duration
}

// NewService builds a service. c may be nil to disable caching.
func NewService(repo Repository, c cache.Cache, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: c, ttl: ttl}
}

func (s *Service) GetCustomer(ctx context.Context, customerID string) (domain.Customer, error) {
	return readThrough(ctx, s, "customer", customerID, s.repo.GetCustomer)
}

func (s *Service) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	return readThrough(ctx, s, "product", productID, s.repo.GetProduct)
}

func readThrough[T any](ctx context.Context, s *Service, kind, id string, load func(context.Context, string) (T, error)) (T, error) {
	if s.cache == nil {
		return load(ctx, id)
	}

	key := s.cache.GenerateKey(kind, id)
	cached, ok, err := cache.GetJSON[T](ctx, s.cache, key)
	if err != nil {
		slog.WarnContext(ctx, "catalog cache read failed", "key", key, "error", err)
	}
	if ok {
		return cached, nil
	}

	v, err := load(ctx, id)
	if err != nil {
		return v, err
	}

	if err := cache.SetJSON(ctx, s.cache, key, v, s.ttl); err != nil {
		slog.WarnContext(ctx, "catalog cache write failed", "key", key, "error", err)
	}
	return v, nil
}
