package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	aicore "github.com/leadforge/ai-core"
	"github.com/leadforge/ai-core/internal/auth"
	"github.com/leadforge/ai-core/internal/logging"
	"github.com/leadforge/ai-core/internal/usage"
)

// newRouter builds the HTTP router.
func newRouter(gw *aicore.Gateway, keys auth.Store, usageLister usage.Lister, usagePurger usage.Purger, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(logging.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(corsOrigins...))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.Middleware(keys))
		r.Use(auth.RequireScope(auth.ScopeAssist, auth.ScopeAdmin))

		r.Get("/modes", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"success": true,
				"modes":   gw.Modes(),
			})
		})
		r.Post("/assist", assistHandler(gw))
		r.Get("/assist/limits", limitsHandler(gw))
	})

	adminHandlers := &auth.Handlers{
		Keys:       keys,
		Limits:     gw.Limits(),
		Policy:     gw.Policy(),
		Usage:      usageLister,
		UsageAdmin: usagePurger,
	}
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.Middleware(keys))
		r.Mount("/", adminHandlers.Routes())
	})

	return r
}

// assistHandler executes one governed AI call. The caller identity comes from
// the authenticated key, never from the request body.
func assistHandler(gw *aicore.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req aicore.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body", string(aicore.KindInvalidRequest))
			return
		}

		key, ok := auth.KeyFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required", "UNAUTHENTICATED")
			return
		}
		req.CallerID = key.CallerID

		res, err := gw.Run(r.Context(), req)
		if err != nil {
			writeGatewayError(w, err)
			return
		}

		setRateLimitHeaders(w, res.RateLimit)
		// Flat success envelope: the Result fields marshal next to the flag.
		writeJSON(w, http.StatusOK, struct {
			Success bool `json:"success"`
			*aicore.Result
		}{true, res})
	}
}

// limitsHandler reports the authenticated caller's quota position without
// consuming from it.
func limitsHandler(gw *aicore.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := auth.KeyFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required", "UNAUTHENTICATED")
			return
		}

		st, err := gw.LimitStatus(r.Context(), key.CallerID)
		if err != nil {
			writeGatewayError(w, err)
			return
		}
		setRateLimitHeaders(w, st)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":         true,
			"rateLimitStatus": st,
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, st aicore.RateLimitStatus) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(st.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(st.Remaining))
	if !st.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(st.ResetAt.Unix(), 10))
	}
}

// writeGatewayError maps a gateway error onto the JSON envelope and status
// code. Rate-limited responses additionally carry Retry-After and the quota
// position.
func writeGatewayError(w http.ResponseWriter, err error) {
	e, ok := aicore.AsError(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal error", string(aicore.KindInternal))
		return
	}

	body := map[string]interface{}{
		"success": false,
		"error":   e.Message,
		"code":    string(e.Kind),
	}
	if e.Kind == aicore.KindRateLimited {
		if secs := int(time.Until(e.ResetAt).Seconds()); secs > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		body["rateLimitStatus"] = aicore.RateLimitStatus{
			Limit:     e.Limit,
			Remaining: 0,
			ResetAt:   e.ResetAt,
		}
	}

	writeJSON(w, e.HTTPStatus(), body)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
