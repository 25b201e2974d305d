// Package aicore is the AI usage-governance core of the LeadForge platform.
//
// The Gateway type is the main entry point: create one with New, attach a
// completion provider with UseCompleter and a usage sink with UseRecorder,
// and execute governed AI calls with Run. Every call is validated, counted
// against the caller's fixed-window quota, resolved through the closed mode
// table, bounded by a hard timeout, and recorded for accounting — in that
// order, always.
package aicore

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadforge/ai-core/internal/logging"
	"github.com/leadforge/ai-core/internal/metrics"
	"github.com/leadforge/ai-core/internal/modes"
	"github.com/leadforge/ai-core/internal/ratelimit"
	"github.com/leadforge/ai-core/internal/usage"
	"github.com/leadforge/ai-core/providers"
)

// DefaultTimeout bounds each provider call when the config does not set one.
const DefaultTimeout = 45 * time.Second

// EventHookFunc is called asynchronously after each completed or failed run.
// Hooks must not block on the passed context; it may already be done.
type EventHookFunc func(ctx context.Context, subject string, data map[string]interface{})

// Event subject constants used when invoking gateway hooks.
const (
	SubjectRequestCompleted = "gateway.request.completed"
	SubjectRequestFailed    = "gateway.request.failed"
)

// Request is one governed AI invocation.
type Request struct {
	// CallerID identifies the quota bucket (user or tenant). Required. Never
	// read from the wire: the HTTP layer sets it from the authenticated key.
	CallerID string `json:"-"`
	// Mode selects the prompt profile. Must be a member of the closed set.
	Mode string `json:"mode"`
	// UserMessage is the end-user input. Required, non-blank.
	UserMessage string `json:"user"`
	// ContextText is optional domain context (CRM rows, company data)
	// injected between the system prompt and the user message.
	ContextText string `json:"context,omitempty"`
	// SystemOverride replaces the mode's system prompt when non-empty.
	SystemOverride string `json:"system,omitempty"`
	// MaxTokens caps generation below the mode default when > 0.
	MaxTokens int `json:"maxTokens,omitempty"`
	// Temperature overrides the mode default when set.
	Temperature *float64 `json:"temperature,omitempty"`
	// Metadata is carried verbatim into the usage record.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RateLimitStatus is the caller's quota position after a run.
type RateLimitStatus struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// Result is a successful run. Its json tags are the flat fields of the wire
// success envelope; the HTTP layer embeds it next to the success flag.
type Result struct {
	Text       string          `json:"result"`
	Mode       modes.Mode      `json:"mode"`
	Model      string          `json:"model,omitempty"`
	TokensUsed int             `json:"tokensUsed"`
	RateLimit  RateLimitStatus `json:"rateLimitStatus"`
}

// Gateway governs AI usage: one validated, rate-limited, mode-resolved,
// timeout-bounded, usage-recorded provider call per Run.
type Gateway struct {
	mu        sync.RWMutex
	policy    ratelimit.Policy
	limits    ratelimit.Store
	registry  *modes.Registry
	completer providers.Completer
	recorder  usage.Recorder
	timeout   time.Duration
	hooks     []EventHookFunc

	recordRateLimited bool
}

// New creates a Gateway from cfg. The rate-limit store defaults to the
// in-process memory backend and the usage recorder to a no-op sink; swap
// either with UseLimitStore / UseRecorder before serving traffic.
func New(cfg Config) (*Gateway, error) {
	policy := ratelimit.DefaultPolicy()
	if cfg.RateLimit.Limit > 0 {
		policy.Limit = cfg.RateLimit.Limit
	}
	if cfg.RateLimit.Window != "" {
		w, err := time.ParseDuration(cfg.RateLimit.Window)
		if err != nil {
			return nil, fmt.Errorf("rate_limit.window: %w", err)
		}
		policy.Window = w
	}

	registry := modes.NewRegistry()
	for _, m := range cfg.Modes {
		err := registry.Apply(m.Mode, modes.Override{
			SystemPrompt: m.SystemPrompt,
			MaxTokens:    m.MaxTokens,
			Temperature:  m.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("modes: %w", err)
		}
	}

	timeout := DefaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	recordRL := true
	if cfg.RecordRateLimited != nil {
		recordRL = *cfg.RecordRateLimited
	}

	return &Gateway{
		policy:            policy,
		limits:            ratelimit.NewMemory(),
		registry:          registry,
		recorder:          usage.Noop{},
		timeout:           timeout,
		recordRateLimited: recordRL,
	}, nil
}

// UseCompleter attaches the completion provider. Required before Run.
func (g *Gateway) UseCompleter(c providers.Completer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completer = c
}

// UseRecorder attaches the usage sink.
func (g *Gateway) UseRecorder(r usage.Recorder) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recorder = r
}

// UseLimitStore swaps the rate-limit backend (e.g. for the shared Redis
// store behind multiple instances).
func (g *Gateway) UseLimitStore(s ratelimit.Store) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limits = s
}

// AddHook registers an EventHookFunc invoked asynchronously on every
// completed or failed run. Multiple hooks may be registered.
func (g *Gateway) AddHook(fn EventHookFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hooks = append(g.hooks, fn)
}

// Policy returns the active rate-limit policy.
func (g *Gateway) Policy() ratelimit.Policy {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.policy
}

// Limits returns the rate-limit store, for administrative surfaces that
// need Status/Reset access.
func (g *Gateway) Limits() ratelimit.Store {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.limits
}

// Modes lists the supported operation modes in sorted order.
func (g *Gateway) Modes() []modes.Mode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.registry.Modes()
}

// LimitStatus reports a caller's quota position without consuming from it.
func (g *Gateway) LimitStatus(ctx context.Context, callerID string) (RateLimitStatus, error) {
	g.mu.RLock()
	limits, policy := g.limits, g.policy
	g.mu.RUnlock()

	st, err := limits.Status(ctx, callerID, policy)
	if err != nil {
		return RateLimitStatus{}, internalError(err)
	}
	return RateLimitStatus{Limit: st.Limit, Remaining: st.Remaining, ResetAt: st.ResetAt}, nil
}

// Run executes one governed AI call: validate, admit against the caller's
// quota, resolve the mode profile, invoke the provider under the timeout
// bound, record usage, and shape the result. Every error is a *Error with a
// stable Kind.
func (g *Gateway) Run(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	g.mu.RLock()
	limits, policy := g.limits, g.policy
	registry, completer := g.registry, g.completer
	timeout, recordRL := g.timeout, g.recordRateLimited
	g.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			log.Error("gateway panic",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			metrics.RequestsTotal.WithLabelValues(req.Mode, "internal").Inc()
			res, err = nil, internalError(fmt.Errorf("panic: %v", r))
		}
	}()

	// Validation never consumes quota and is never recorded.
	if req.CallerID == "" {
		metrics.RequestsTotal.WithLabelValues(req.Mode, "invalid_request").Inc()
		return nil, invalidRequest("caller_id is required")
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		metrics.RequestsTotal.WithLabelValues(req.Mode, "invalid_request").Inc()
		return nil, invalidRequest("user must not be empty")
	}
	mode, profile, rerr := registry.Resolve(req.Mode)
	if rerr != nil {
		metrics.RequestsTotal.WithLabelValues(req.Mode, "invalid_mode").Inc()
		return nil, invalidMode(req.Mode, rerr)
	}
	if completer == nil {
		metrics.RequestsTotal.WithLabelValues(req.Mode, "internal").Inc()
		return nil, internalError(errors.New("no completion provider attached"))
	}

	decision, aerr := limits.Admit(ctx, req.CallerID, policy)
	if aerr != nil {
		log.Error("rate-limit store failure", "error", aerr.Error())
		metrics.RequestsTotal.WithLabelValues(req.Mode, "internal").Inc()
		return nil, internalError(aerr)
	}
	if !decision.Allowed {
		metrics.RateLimitRejections.WithLabelValues(req.Mode).Inc()
		metrics.RequestsTotal.WithLabelValues(req.Mode, "rate_limited").Inc()
		gerr := rateLimited(policy.Limit, decision.ResetAt)
		if recordRL {
			g.record(ctx, usage.Record{
				ID:           uuid.NewString(),
				CallerID:     req.CallerID,
				Mode:         string(mode),
				Provider:     completer.Name(),
				StartedAt:    start.UTC(),
				DurationMs:   time.Since(start).Milliseconds(),
				ErrorKind:    string(KindRateLimited),
				ErrorMessage: gerr.Message,
				Metadata:     req.Metadata,
			})
		}
		log.Warn("request rate limited",
			"mode", string(mode),
			"limit", policy.Limit,
			"reset_at", decision.ResetAt,
		)
		return nil, gerr
	}

	preq := providers.Request{
		System:      profile.SystemPrompt,
		Context:     req.ContextText,
		User:        req.UserMessage,
		MaxTokens:   profile.MaxTokens,
		Temperature: profile.Temperature,
	}
	if req.SystemOverride != "" {
		preq.System = req.SystemOverride
	}
	if req.MaxTokens > 0 && req.MaxTokens < preq.MaxTokens {
		preq.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		preq.Temperature = *req.Temperature
	}

	resp, perr := g.complete(ctx, completer, preq, timeout)
	latency := time.Since(start)

	rec := usage.Record{
		ID:         uuid.NewString(),
		CallerID:   req.CallerID,
		Mode:       string(mode),
		Provider:   completer.Name(),
		StartedAt:  start.UTC(),
		DurationMs: latency.Milliseconds(),
		Metadata:   req.Metadata,
	}

	if perr != nil {
		var gerr *Error
		switch {
		case errors.Is(perr, context.DeadlineExceeded):
			gerr = timeoutError(timeout, perr)
			metrics.ProviderErrors.WithLabelValues("timeout").Inc()
			metrics.RequestsTotal.WithLabelValues(string(mode), "timeout").Inc()
		case errors.Is(perr, context.Canceled):
			// The caller went away before the deadline fired. Not a provider
			// fault, so it stays out of the provider-error counters.
			gerr = canceledError(perr)
			metrics.RequestsTotal.WithLabelValues(string(mode), "canceled").Inc()
		default:
			gerr = providerError(perr)
			metrics.ProviderErrors.WithLabelValues("provider_error").Inc()
			metrics.RequestsTotal.WithLabelValues(string(mode), "provider_error").Inc()
		}

		rec.ErrorKind = string(gerr.Kind)
		rec.ErrorMessage = perr.Error()
		g.record(ctx, rec)

		if gerr.Kind == KindCanceled {
			log.Warn("ai request canceled by caller",
				"mode", string(mode),
				"latency_ms", latency.Milliseconds(),
			)
		} else {
			log.Error("ai request failed",
				"mode", string(mode),
				"kind", string(gerr.Kind),
				"latency_ms", latency.Milliseconds(),
				"error", perr.Error(),
			)
		}
		g.publishEvent(ctx, SubjectRequestFailed, map[string]interface{}{
			"trace_id":   logging.TraceIDFromContext(ctx),
			"caller_id":  req.CallerID,
			"mode":       string(mode),
			"kind":       string(gerr.Kind),
			"latency_ms": latency.Milliseconds(),
			"timestamp":  time.Now(),
		})
		return nil, gerr
	}

	rec.Success = true
	rec.TokensUsed = resp.TokensUsed
	g.record(ctx, rec)

	metrics.RequestsTotal.WithLabelValues(string(mode), "success").Inc()
	metrics.RequestDuration.WithLabelValues(string(mode)).Observe(latency.Seconds())
	metrics.TokensUsed.WithLabelValues(string(mode)).Add(float64(resp.TokensUsed))

	// Report the post-admission quota position. Fall back to the admit
	// decision if the read fails; the call itself already succeeded.
	rl := RateLimitStatus{Limit: policy.Limit, Remaining: decision.Remaining, ResetAt: decision.ResetAt}
	if st, serr := limits.Status(ctx, req.CallerID, policy); serr == nil {
		rl = RateLimitStatus{Limit: st.Limit, Remaining: st.Remaining, ResetAt: st.ResetAt}
	}

	log.Info("ai request completed",
		"mode", string(mode),
		"provider", completer.Name(),
		"tokens_used", resp.TokensUsed,
		"latency_ms", latency.Milliseconds(),
	)
	g.publishEvent(ctx, SubjectRequestCompleted, map[string]interface{}{
		"trace_id":    logging.TraceIDFromContext(ctx),
		"caller_id":   req.CallerID,
		"mode":        string(mode),
		"tokens_used": resp.TokensUsed,
		"latency_ms":  latency.Milliseconds(),
		"timestamp":   time.Now(),
	})

	return &Result{
		Text:       resp.Text,
		Mode:       mode,
		Model:      resp.Model,
		TokensUsed: resp.TokensUsed,
		RateLimit:  rl,
	}, nil
}

// complete invokes the provider under the timeout bound. The call runs in
// its own goroutine so the bound holds even against a provider that ignores
// context cancellation; a late result from such a provider is discarded.
func (g *Gateway) complete(ctx context.Context, c providers.Completer, req providers.Request, timeout time.Duration) (*providers.Response, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		resp *providers.Response
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		resp, err := c.Complete(cctx, req)
		ch <- outcome{resp, err}
	}()

	select {
	case <-cctx.Done():
		return nil, cctx.Err()
	case o := <-ch:
		if o.err != nil {
			return nil, o.err
		}
		if o.resp == nil {
			return nil, errors.New("provider returned no response")
		}
		return o.resp, nil
	}
}

// record writes a usage record. Accounting failures never fail the request;
// they are logged and counted so operators notice an unhealthy sink.
func (g *Gateway) record(ctx context.Context, rec usage.Record) {
	g.mu.RLock()
	recorder := g.recorder
	g.mu.RUnlock()

	if err := recorder.Record(ctx, rec); err != nil {
		metrics.UsageWriteFailures.Inc()
		logging.FromContext(ctx).Error("usage record write failed",
			"record_id", rec.ID,
			"error", err.Error(),
		)
	}
}

func (g *Gateway) publishEvent(ctx context.Context, subject string, data map[string]interface{}) {
	g.mu.RLock()
	hooks := make([]EventHookFunc, len(g.hooks))
	copy(hooks, g.hooks)
	g.mu.RUnlock()

	for _, h := range hooks {
		fn := h
		go fn(ctx, subject, data)
	}
}
