// Package catalogclient fetches customer and product snapshots from the
// catalog API with bounded, backoff-based retries.
package catalogclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/order-worker/internal/domain"
)

const (
	resourceCustomer = "customer"
	resourceProduct  = "product"

	maxBodyBytes = 1 << 20
)

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
}

type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New builds a client for baseURL. timeout bounds every single attempt.
func New(baseURL string, timeout time.Duration, retry RetryConfig, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retry: retry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetCustomer fetches GET {baseURL}/api/customers/{id}.
func (c *Client) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := get[domain.Customer](ctx, c, resourceCustomer, id, func(v domain.Customer) bool {
		return v.CustomerID != ""
	})
	if err != nil {
		slog.ErrorContext(ctx, "customer fetch failed", "customer_id", id, "error", err)
		return domain.Customer{}, err
	}
	slog.InfoContext(ctx, "customer fetched", "customer_id", id, "active", customer.Active)
	return customer, nil
}

// GetProduct fetches GET {baseURL}/api/products/{id}.
func (c *Client) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := get[domain.Product](ctx, c, resourceProduct, id, func(v domain.Product) bool {
		return v.ProductID != ""
	})
	if err != nil {
		slog.ErrorContext(ctx, "product fetch failed", "product_id", id, "error", err)
		return domain.Product{}, err
	}
	slog.InfoContext(ctx, "product fetched", "product_id", id, "price", product.Price.String())
	return product, nil
}

func get[T any](ctx context.Context, c *Client, resource, id string, complete func(T) bool) (T, error) {
	endpoint := fmt.Sprintf("%s/api/%ss/%s", c.baseURL, resource, url.PathEscape(id))
	return retryWithBackoff(ctx, c.retry, "get "+resource, isRetryable, func() (T, error) {
		return fetchOnce(ctx, c.httpClient, endpoint, resource, id, complete)
	})
}

func fetchOnce[T any](ctx context.Context, hc *http.Client, endpoint, resource, id string, complete func(T) bool) (T, error) {
	var zero T

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return zero, rejected(resource, id, 0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return zero, transient(resource, id, 0, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return zero, notFound(resource, id, resp.StatusCode)
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return zero, transient(resource, id, resp.StatusCode, nil)
	default:
		return zero, rejected(resource, id, resp.StatusCode, nil)
	}

	var out T
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&out); err != nil {
		return zero, rejected(resource, id, resp.StatusCode, fmt.Errorf("decode body: %w", err))
	}
	if !complete(out) {
		return zero, rejected(resource, id, resp.StatusCode, errors.New("incomplete record"))
	}
	return out, nil
}
