package auth

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leadforge/ai-core/internal/ratelimit"
	"github.com/leadforge/ai-core/internal/usage"
)

// Handlers holds dependencies for the administration API: key management,
// per-caller quota inspection/override, and usage analytics.
type Handlers struct {
	Keys   Store
	Limits ratelimit.Store
	Policy ratelimit.Policy

	// Usage and UsageAdmin are nil when the usage backend does not support
	// reads or maintenance (e.g. the noop recorder).
	Usage      usage.Lister
	UsageAdmin usage.Purger
}

// Routes returns a chi.Router with all admin endpoints mounted. Callers must
// wrap it with Middleware; scope checks are applied here.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(RequireScope(ScopeAdmin))
		r.Get("/keys", h.listKeys)
		r.Post("/keys", h.createKey)
		r.Get("/keys/{id}", h.getKey)
		r.Delete("/keys/{id}", h.deleteKey)
		r.Post("/keys/{id}/revoke", h.revokeKey)
		r.Post("/keys/{id}/rotate", h.rotateKey)

		r.Get("/limits/{callerID}", h.getLimit)
		r.Delete("/limits/{callerID}", h.resetLimit)

		r.Get("/usage", h.listUsage)
		r.Delete("/usage", h.purgeUsage)
	})

	return r
}

func (h *Handlers) createKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      string     `json:"name"`
		CallerID  string     `json:"caller_id"`
		Scopes    []string   `json:"scopes"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_REQUEST")
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", "INVALID_REQUEST")
		return
	}

	key, err := h.Keys.Create(body.Name, body.CallerID, body.Scopes, body.ExpiresAt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create key", "INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusCreated, key)
}

func (h *Handlers) listKeys(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Keys.List())
}

func (h *Handlers) getKey(w http.ResponseWriter, r *http.Request) {
	key, ok := h.Keys.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "key not found", "NOT_FOUND")
		return
	}
	masked := *key
	if len(masked.Key) > 8 {
		masked.Key = masked.Key[:8] + "..."
	}
	writeJSON(w, http.StatusOK, &masked)
}

func (h *Handlers) deleteKey(w http.ResponseWriter, r *http.Request) {
	if err := h.Keys.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, "key not found", "NOT_FOUND")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) revokeKey(w http.ResponseWriter, r *http.Request) {
	if err := h.Keys.Revoke(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, "key not found", "NOT_FOUND")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) rotateKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.Keys.RotateKey(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "key not found", "NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, key)
}

func (h *Handlers) getLimit(w http.ResponseWriter, r *http.Request) {
	callerID := chi.URLParam(r, "callerID")
	s, err := h.Limits.Status(r.Context(), callerID, h.Policy)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read limit status", "INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"caller_id": callerID,
		"limit":     s.Limit,
		"remaining": s.Remaining,
		"reset_at":  unixOrZero(s.ResetAt),
	})
}

// resetLimit is the administrative quota override: it drops the caller's
// window so the next request starts fresh.
func (h *Handlers) resetLimit(w http.ResponseWriter, r *http.Request) {
	if err := h.Limits.Reset(r.Context(), chi.URLParam(r, "callerID")); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset limit", "INTERNAL_ERROR")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) listUsage(w http.ResponseWriter, r *http.Request) {
	if h.Usage == nil {
		writeError(w, http.StatusNotImplemented, "usage backend does not support listing", "NOT_IMPLEMENTED")
		return
	}
	q := usage.Query{
		CallerID:  r.URL.Query().Get("caller_id"),
		Mode:      r.URL.Query().Get("mode"),
		ErrorKind: r.URL.Query().Get("error_kind"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		q.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		q.Offset, _ = strconv.Atoi(v)
	}

	res, err := h.Usage.List(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list usage records", "INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) purgeUsage(w http.ResponseWriter, r *http.Request) {
	if h.UsageAdmin == nil {
		writeError(w, http.StatusNotImplemented, "usage backend does not support maintenance", "NOT_IMPLEMENTED")
		return
	}
	before := r.URL.Query().Get("before")
	if before == "" {
		writeError(w, http.StatusBadRequest, "before query parameter is required (RFC3339)", "INVALID_REQUEST")
		return
	}
	cutoff, err := time.Parse(time.RFC3339, before)
	if err != nil {
		writeError(w, http.StatusBadRequest, "before must be RFC3339", "INVALID_REQUEST")
		return
	}

	deleted, err := h.UsageAdmin.Purge(r.Context(), cutoff)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to purge usage records", "INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
