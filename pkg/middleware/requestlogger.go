package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/order-service/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context, enriched with
// correlation_id and the active trace and span ids. Mount it after
// RequestLogging and Tracing.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
