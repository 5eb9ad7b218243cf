package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jcmexdev/order-worker/internal/httpx/middlewares"
)

// NewRouter mounts the ops routes. gatherer backs /metrics.
func NewRouter(handler *Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachRequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", handler.Health)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middlewares.Logger)
		r.Get("/orders/{orderId}", handler.GetOrder)
		r.Get("/runs/{orderId}", handler.GetRun)
	})
	return r
}
