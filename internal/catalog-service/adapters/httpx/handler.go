package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/order-worker/internal/catalog-service/app"
	"github.com/jcmexdev/order-worker/internal/domain"
)

// Catalog is implemented by app.Service.
type Catalog interface {
	GetCustomer(ctx context.Context, customerID string) (domain.Customer, error)
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
}

type Handler struct {
	catalog Catalog
}

func NewHandler(catalog Catalog) *Handler {
	return &Handler{catalog: catalog}
}

// GetCustomer serves GET /api/customers/{id}.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	customer, err := h.catalog.GetCustomer(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, r, "Customer", id, err)
		return
	}

	slog.InfoContext(r.Context(), "customer found", "customer_id", customer.CustomerID, "active", customer.Active)
	writeJSON(w, http.StatusOK, mapCustomer(customer))
}

// GetProduct serves GET /api/products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, r, "Product", id, err)
		return
	}

	slog.InfoContext(r.Context(), "product found", "product_id", product.ProductID, "price", product.Price.String())
	writeJSON(w, http.StatusOK, mapProduct(product))
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeLookupError(w http.ResponseWriter, r *http.Request, kind, id string, err error) {
	if errors.Is(err, app.ErrNotFound) {
		slog.InfoContext(r.Context(), "catalog record not found", "kind", kind, "id", id)
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   kind + " not found",
			Message: fmt.Sprintf("%s with ID '%s' does not exist", kind, id),
		})
		return
	}

	slog.ErrorContext(r.Context(), "catalog lookup failed", "kind", kind, "id", id, "error", err)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "Database error",
		Message: fmt.Sprintf("An error occurred while fetching the %s", strings.ToLower(kind)),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
