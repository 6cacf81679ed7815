package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestID tags every request so error responses can be correlated with
// server logs. An incoming X-Request-ID is trusted and passed through.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}
