package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler(t *testing.T, called *bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		key, ok := KeyFromContext(r.Context())
		if !ok || key == nil {
			t.Error("authenticated request missing key in context")
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareRejectsMissingHeader(t *testing.T) {
	called := false
	h := Middleware(NewKeyStore())(okHandler(t, &called))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if called {
		t.Error("handler ran without credentials")
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if body["success"] != false || body["code"] != "UNAUTHENTICATED" {
		t.Errorf("error envelope = %v", body)
	}
}

func TestMiddlewareRejectsInvalidKey(t *testing.T) {
	called := false
	h := Middleware(NewKeyStore())(okHandler(t, &called))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer lf-not-a-real-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized || called {
		t.Errorf("status = %d, called = %v", rec.Code, called)
	}
}

func TestMiddlewareAcceptsValidKey(t *testing.T) {
	store := NewKeyStore()
	k, _ := store.Create("app", "tenant-3", nil, nil)

	called := false
	h := Middleware(store)(okHandler(t, &called))

	req := httptest.NewRequest(http.MethodPost, "/v1/assist", nil)
	req.Header.Set("Authorization", "Bearer "+k.Key)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !called {
		t.Errorf("status = %d, called = %v", rec.Code, called)
	}
}

func TestRequireScope(t *testing.T) {
	store := NewKeyStore()
	assistKey, _ := store.Create("app", "", []string{ScopeAssist}, nil)
	adminKey, _ := store.Create("ops", "", []string{ScopeAssist, ScopeAdmin}, nil)

	called := false
	h := Middleware(store)(RequireScope(ScopeAdmin)(okHandler(t, &called)))

	req := httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
	req.Header.Set("Authorization", "Bearer "+assistKey.Key)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden || called {
		t.Errorf("assist-scoped key: status = %d, called = %v", rec.Code, called)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
	req.Header.Set("Authorization", "Bearer "+adminKey.Key)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !called {
		t.Errorf("admin-scoped key: status = %d, called = %v", rec.Code, called)
	}
}
