package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/leadforge/ai-core/internal/logging"
)

type contextKey string

const apiKeyContextKey contextKey = "api_key"

// KeyFromContext retrieves the authenticated API key from the request context.
func KeyFromContext(ctx context.Context) (*APIKey, bool) {
	key, ok := ctx.Value(apiKeyContextKey).(*APIKey)
	return key, ok
}

// Middleware returns a chi-compatible middleware that validates the bearer
// credential and stores the key plus its resolved caller ID in the request
// context. Unauthenticated requests never reach the gateway.
func Middleware(store Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing or invalid authorization header", "UNAUTHENTICATED")
				return
			}

			apiKey, ok := store.ValidateKey(strings.TrimPrefix(auth, "Bearer "))
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid, expired, or revoked API key", "UNAUTHENTICATED")
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyContextKey, apiKey)
			ctx = logging.WithCallerID(ctx, apiKey.CallerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope returns a middleware that checks whether the authenticated key
// has at least one of the required scopes.
func RequireScope(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, ok := KeyFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required", "UNAUTHENTICATED")
				return
			}

			for _, required := range scopes {
				if apiKey.HasScope(required) {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, "insufficient permissions", "FORBIDDEN")
		})
	}
}

// writeError writes the service's JSON error envelope:
//
//	{"success":false,"error":"...","code":"..."}
func writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
