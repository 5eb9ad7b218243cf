// Package httpx serves the worker's operations API.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/order-worker/internal/coordinator/runlog"
	"github.com/jcmexdev/order-worker/internal/domain"
	"github.com/jcmexdev/order-worker/internal/orderstore"
)

// Handler exposes stored orders and pipeline run state.
type Handler struct {
	orders orderstore.Repository
	runs   runlog.Repository // nil-safe: /runs answers 404
}

func NewHandler(orders orderstore.Repository, runs runlog.Repository) *Handler {
	return &Handler{orders: orders, runs: runs}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// GetOrder returns the stored order for a business order id.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	order, err := h.orders.GetByOrderID(r.Context(), orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "order_not_found", err.Error())
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "order lookup failed", "order_id", orderID, "error", err)
		writeError(w, http.StatusInternalServerError, "order_store_error", "")
		return
	}

	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

// GetRun returns the latest pipeline transition recorded for an order id.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if h.runs == nil {
		writeError(w, http.StatusNotFound, "run_not_found", "run log disabled")
		return
	}

	entry, err := h.runs.GetLatest(r.Context(), orderID)
	if errors.Is(err, runlog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run_not_found", err.Error())
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "run lookup failed", "order_id", orderID, "error", err)
		writeError(w, http.StatusInternalServerError, "run_log_error", "")
		return
	}

	writeJSON(w, http.StatusOK, mapRunToResponse(entry))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
