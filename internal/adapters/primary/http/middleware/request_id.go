package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/swaraj/complaints-backend/internal/infrastructure/logging"
)

const (
	// RequestIDKey is the context key under which the request ID is stored.
	RequestIDKey contextKey = "request_id"
	// RequestIDHeader carries the request ID on requests and responses.
	RequestIDHeader = "X-Request-ID"
)

// RequestID tags every request with an ID. A caller-supplied X-Request-ID is
// honored so IDs survive proxy hops; otherwise a fresh UUID is minted. The ID
// is echoed on the response and stored in the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), RequestIDKey, id)
		ctx = logging.WithRequestID(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID stored in ctx, or "" if absent.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
