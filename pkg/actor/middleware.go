package actor

import (
	"encoding/json"
	"net/http"
)

// Middleware resolves the principal with resolver and stores it in the
// request context. On resolution failure it responds with a 400 JSON error.
func Middleware(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := resolver.Resolve(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// NewMiddleware creates middleware with the resolver for mode.
func NewMiddleware(mode Mode) func(http.Handler) http.Handler {
	switch mode {
	case ModeHeader:
		return Middleware(HeaderResolver{})
	case ModeHeaderRequired:
		return Middleware(HeaderResolver{Required: true})
	default:
		return Middleware(AnonymousResolver{})
	}
}
