package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/beije/packet-storefront/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID reuses a well-formed inbound X-Request-Id so gateway logs can be
// correlated with the UI, and mints one otherwise.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := sanitizeID(r.Header.Get(requestIDHeader))
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			ctx := logg.WithRequestID(WithRequestID(r.Context(), reqID), reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
