package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/caddelle/ops-backend/internal/events"
	"github.com/caddelle/ops-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID assigns or propagates the request id. The same id becomes the
// correlation id on outbound event envelopes.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, reqID)

			ctx := events.WithCorrelationID(r.Context(), reqID)
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
