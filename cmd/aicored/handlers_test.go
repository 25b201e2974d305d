package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	aicore "github.com/leadforge/ai-core"
	"github.com/leadforge/ai-core/internal/auth"
	"github.com/leadforge/ai-core/providers"
)

type stubCompleter struct {
	fn func(ctx context.Context, req providers.Request) (*providers.Response, error)
}

func (s *stubCompleter) Name() string { return "stub" }

func (s *stubCompleter) Complete(ctx context.Context, req providers.Request) (*providers.Response, error) {
	return s.fn(ctx, req)
}

func newTestServer(t *testing.T, cfg aicore.Config) (*httptest.Server, string) {
	t.Helper()
	gw, err := aicore.New(cfg)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	gw.UseCompleter(&stubCompleter{
		fn: func(_ context.Context, _ providers.Request) (*providers.Response, error) {
			return &providers.Response{Text: "drafted", TokensUsed: 17, Model: "test-model"}, nil
		},
	})

	keys := auth.NewKeyStore()
	k, err := keys.Create("test-app", "tenant-1", []string{auth.ScopeAssist}, nil)
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	srv := httptest.NewServer(newRouter(gw, keys, nil, nil, nil))
	t.Cleanup(srv.Close)
	return srv, k.Key
}

func postAssist(t *testing.T, srv *httptest.Server, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/assist", strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /v1/assist: %v", err)
	}
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, aicore.Config{})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAssistRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t, aicore.Config{})

	resp := postAssist(t, srv, "", `{"mode":"CHAT","user":"hi"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	body := decodeEnvelope(t, resp)
	if body["code"] != "UNAUTHENTICATED" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestAssistSuccess(t *testing.T) {
	srv, token := newTestServer(t, aicore.Config{
		RateLimit: aicore.RateLimitConfig{Limit: 10, Window: "1m"},
	})

	resp := postAssist(t, srv, token, `{"mode":"EMAIL_OUTREACH","user":"draft an intro email"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("X-RateLimit-Limit"); got != "10" {
		t.Errorf("X-RateLimit-Limit = %q, want 10", got)
	}
	if got := resp.Header.Get("X-RateLimit-Remaining"); got != "9" {
		t.Errorf("X-RateLimit-Remaining = %q, want 9", got)
	}

	body := decodeEnvelope(t, resp)
	if body["success"] != true {
		t.Fatalf("envelope = %v", body)
	}
	if body["result"] != "drafted" || body["mode"] != "EMAIL_OUTREACH" {
		t.Errorf("envelope = %v", body)
	}
	rl, _ := body["rateLimitStatus"].(map[string]interface{})
	if rl["limit"] != float64(10) || rl["remaining"] != float64(9) {
		t.Errorf("rateLimitStatus = %v, want limit 10 remaining 9", rl)
	}
	if rl["resetAt"] == nil {
		t.Error("rateLimitStatus.resetAt missing")
	}
}

// TestAssistMinimalBody posts the smallest valid body: mode plus user text,
// nothing else. It must succeed; the caller identity comes from the key.
func TestAssistMinimalBody(t *testing.T) {
	srv, token := newTestServer(t, aicore.Config{})

	resp := postAssist(t, srv, token, `{"mode":"CHAT","user":"hi there"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeEnvelope(t, resp)
	if body["success"] != true || body["result"] != "drafted" || body["mode"] != "CHAT" {
		t.Errorf("envelope = %v", body)
	}
}

func TestAssistInvalidMode(t *testing.T) {
	srv, token := newTestServer(t, aicore.Config{})

	resp := postAssist(t, srv, token, `{"mode":"chat","user":"hi"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeEnvelope(t, resp)
	if body["code"] != "INVALID_MODE" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestAssistInvalidRequest(t *testing.T) {
	srv, token := newTestServer(t, aicore.Config{})

	for name, payload := range map[string]string{
		"malformed json": `{not json`,
		"blank message":  `{"mode":"CHAT","user":"   "}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp := postAssist(t, srv, token, payload)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			body := decodeEnvelope(t, resp)
			if body["code"] != "INVALID_REQUEST" {
				t.Errorf("code = %v", body["code"])
			}
		})
	}
}

func TestAssistRateLimited(t *testing.T) {
	srv, token := newTestServer(t, aicore.Config{
		RateLimit: aicore.RateLimitConfig{Limit: 1, Window: "1m"},
	})

	resp := postAssist(t, srv, token, `{"mode":"CHAT","user":"hi"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first call status = %d", resp.StatusCode)
	}

	resp = postAssist(t, srv, token, `{"mode":"CHAT","user":"hi"}`)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	body := decodeEnvelope(t, resp)
	if body["code"] != "RATE_LIMITED" {
		t.Errorf("code = %v", body["code"])
	}
	rl, _ := body["rateLimitStatus"].(map[string]interface{})
	if rl == nil {
		t.Fatal("rateLimitStatus detail missing from envelope")
	}
	if rl["limit"] != float64(1) || rl["remaining"] != float64(0) {
		t.Errorf("rateLimitStatus = %v, want limit 1 remaining 0", rl)
	}
}

func TestAssistCallerFromKeyNotBody(t *testing.T) {
	srv, token := newTestServer(t, aicore.Config{
		RateLimit: aicore.RateLimitConfig{Limit: 1, Window: "1m"},
	})

	// Spoofing caller_id in the body must not escape the key's quota bucket.
	resp := postAssist(t, srv, token, `{"caller_id":"someone-else","mode":"CHAT","user":"hi"}`)
	resp.Body.Close()
	resp = postAssist(t, srv, token, `{"caller_id":"another","mode":"CHAT","user":"hi"}`)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 (body caller_id must be ignored)", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestListModes(t *testing.T) {
	srv, token := newTestServer(t, aicore.Config{})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/modes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /v1/modes: %v", err)
	}
	body := decodeEnvelope(t, resp)
	list, _ := body["modes"].([]interface{})
	if len(list) != 6 {
		t.Fatalf("got %d modes, want 6", len(list))
	}
}

func TestAssistLimits(t *testing.T) {
	srv, token := newTestServer(t, aicore.Config{
		RateLimit: aicore.RateLimitConfig{Limit: 4, Window: "1m"},
	})

	resp := postAssist(t, srv, token, `{"mode":"CHAT","user":"hi"}`)
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/assist/limits", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /v1/assist/limits: %v", err)
	}
	body := decodeEnvelope(t, resp)
	rl, _ := body["rateLimitStatus"].(map[string]interface{})
	if rl["limit"] != float64(4) || rl["remaining"] != float64(3) {
		t.Errorf("rateLimitStatus = %v, want limit 4 remaining 3", rl)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, aicore.Config{})

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
