package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jcmexdev/order-worker/internal/domain"
)

type fetchResult int

const (
	fetchResolved fetchResult = iota
	fetchNotFound
	fetchTransient
	fetchRejected
)

func (r fetchResult) String() string {
	switch r {
	case fetchResolved:
		return "resolved"
	case fetchNotFound:
		return "not_found"
	case fetchTransient:
		return "transient"
	default:
		return "rejected"
	}
}

// productResult is the outcome of fetching one product. A failed fetch never
// aborts its siblings.
type productResult struct {
	ProductID string
	Product   domain.Product
	Result    fetchResult
	Err       error
}

func classify(err error) fetchResult {
	switch {
	case err == nil:
		return fetchResolved
	case errors.Is(err, domain.ErrUpstreamNotFound):
		return fetchNotFound
	case errors.Is(err, domain.ErrUpstreamRejected):
		return fetchRejected
	default:
		return fetchTransient
	}
}

// fetchProducts resolves ids concurrently. Results keep the order of ids.
func fetchProducts(ctx context.Context, catalog CatalogClient, ids []string, limit int) []productResult {
	results := make([]productResult, len(ids))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, id := range ids {
		g.Go(func() error {
			product, err := catalog.GetProduct(ctx, id)
			results[i] = productResult{ProductID: id, Product: product, Result: classify(err), Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// resolvedProducts returns the resolved products in request order, or an
// ErrIncompleteOrder error naming every unresolved id. The error also
// matches ErrUpstreamTransient when at least one miss was transient.
func resolvedProducts(results []productResult) ([]domain.Product, error) {
	products := make([]domain.Product, 0, len(results))
	var missing []string
	transient := false

	for _, r := range results {
		if r.Result == fetchResolved {
			products = append(products, r.Product)
			continue
		}
		missing = append(missing, r.ProductID+"="+r.Result.String())
		if r.Result == fetchTransient {
			transient = true
		}
	}

	if len(missing) == 0 {
		return products, nil
	}

	err := fmt.Errorf("%w: resolved %d of %d [%s]", domain.ErrIncompleteOrder, len(products), len(results), strings.Join(missing, ", "))
	if transient {
		err = fmt.Errorf("%w: %w", err, domain.ErrUpstreamTransient)
	}
	return nil, err
}
