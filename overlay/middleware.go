package overlay

import (
	"net/http"

	"github.com/hazyhaar/promptnav/idgen"
	"github.com/hazyhaar/promptnav/kit"
)

// maxBodyBytes bounds JSON request bodies on the control surface.
const maxBodyBytes = 64 << 10

var newRequestID = idgen.Prefixed("req_", idgen.Default)

// guard hardens every control response: a JSON API never needs framing or
// sniffing, and request bodies are small.
func guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Cache-Control", "no-store")
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

// requestID carries X-Request-ID into the context, minting one when the
// client sent none, and echoes it on the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(kit.WithRequestID(r.Context(), id)))
	})
}
