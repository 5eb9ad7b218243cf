package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-worker/internal/domain"
	"github.com/jcmexdev/order-worker/internal/pkg/cache"
)

type countingRepo struct {
	*MemoryRepository
	customerLoads atomic.Int32
	productLoads  atomic.Int32
}

func (c *countingRepo) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	c.customerLoads.Add(1)
	return c.MemoryRepository.GetCustomer(ctx, id)
}

func (c *countingRepo) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	c.productLoads.Add(1)
	return c.MemoryRepository.GetProduct(ctx, id)
}

func newCachedService(t *testing.T) (*Service, *countingRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &countingRepo{MemoryRepository: NewSeededMemoryRepository(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))}
	return NewService(repo, cache.NewRedisCache(client, "catalog"), time.Minute), repo, mr
}

func TestService_ReadThrough(t *testing.T) {
	svc, repo, mr := newCachedService(t)
	ctx := context.Background()

	first, err := svc.GetProduct(ctx, "product-1")
	require.NoError(t, err)
	second, err := svc.GetProduct(ctx, "product-1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), repo.productLoads.Load())
	assert.True(t, first.Price.Equal(second.Price))
	assert.Equal(t, "999.99", second.Price.String())
	assert.True(t, mr.Exists("catalog:product:product-1"))
	assert.Equal(t, time.Minute, mr.TTL("catalog:product:product-1"))
}

func TestService_MissesAreNotCached(t *testing.T) {
	svc, repo, mr := newCachedService(t)
	ctx := context.Background()

	for range 2 {
		_, err := svc.GetCustomer(ctx, "customer-404")
		assert.True(t, errors.Is(err, ErrNotFound))
	}
	assert.Equal(t, int32(2), repo.customerLoads.Load())
	assert.False(t, mr.Exists("catalog:customer:customer-404"))
}

func TestService_CacheDownFallsBackToStore(t *testing.T) {
	svc, repo, mr := newCachedService(t)
	mr.Close()

	c, err := svc.GetCustomer(context.Background(), "customer-3")
	require.NoError(t, err)
	assert.False(t, c.Active)
	assert.Equal(t, int32(1), repo.customerLoads.Load())
}

func TestService_WithoutCache(t *testing.T) {
	svc := NewService(NewSeededMemoryRepository(time.Now()), nil, 0)

	c, err := svc.GetCustomer(context.Background(), "customer-1")
	require.NoError(t, err)
	assert.True(t, c.Active)
}
