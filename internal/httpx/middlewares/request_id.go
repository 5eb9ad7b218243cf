package middlewares

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/order-worker/internal/pkg/reqctx"
)

// AttachRequestID copies chi's request id into the context key the logger
// reads and echoes it on the response. It must run after middleware.RequestID.
func AttachRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := reqctx.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		w.Header().Set(middleware.RequestIDHeader, reqctx.RequestID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
