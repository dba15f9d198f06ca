package logger

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// CorrelationIDMiddleware extracts or generates a correlation ID and adds it
// to the request context and logger. It also adds the correlation ID to the
// response headers for end-to-end tracing.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Try to extract correlation ID from headers (order of precedence)
		correlationID := r.Header.Get(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = r.Header.Get("X-Request-ID")
		}
		if correlationID == "" {
			correlationID = middleware.GetReqID(r.Context())
		}
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		ctx := WithCorrelationIDLogger(r.Context(), correlationID)

		w.Header().Set(CorrelationIDHeader, correlationID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
