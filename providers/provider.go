// Package providers defines the Completer interface and shared data types
// for external text-completion services.
//
// A Completer receives the fully resolved prompt (system prompt from the
// mode profile, optional context, user message) and generation parameters;
// the gateway owns timeouts, rate limiting, and usage accounting, so
// implementations stay thin adapters over the vendor SDK.
package providers

import "context"

// Request is a single resolved completion request.
type Request struct {
	// System is the resolved system prompt (mode profile plus any override).
	System string
	// Context is optional supplementary text (CRM data, search results)
	// injected ahead of the user message.
	Context string
	// User is the end-user message. Never empty by the time it reaches a
	// provider; the gateway validates it.
	User string

	MaxTokens   int
	Temperature float64
}

// Response is a normalized completion result.
type Response struct {
	// Text is the generated completion.
	Text string
	// TokensUsed is the provider-reported total token count; zero when the
	// provider does not surface usage.
	TokensUsed int
	// Model is the concrete model that served the request.
	Model string
}

// Completer is implemented by every completion-provider adapter.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Base provides the common fields shared by REST-based adapters.
type Base struct {
	name    string
	apiKey  string
	baseURL string
}

// Name returns the provider name.
func (b *Base) Name() string { return b.name }
