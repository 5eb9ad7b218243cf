package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/order-worker/internal/httpx/middlewares"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachRequestID)
	r.Use(middlewares.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", handler.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/customers/{id}", handler.GetCustomer)
		r.Get("/products/{id}", handler.GetProduct)
	})

	return otelhttp.NewHandler(r, "catalog-api")
}
