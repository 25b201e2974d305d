package aicore

// Config holds the configuration for the AI usage-governance gateway.
type Config struct {
	// RateLimit is the per-caller fixed-window quota.
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	// Provider selects and configures the completion backend.
	Provider ProviderConfig `json:"provider" yaml:"provider"`
	// Usage selects the usage-accounting backend.
	Usage UsageConfig `json:"usage,omitempty" yaml:"usage,omitempty"`
	// Modes tunes individual mode profiles (optional).
	Modes []ModeConfig `json:"modes,omitempty" yaml:"modes,omitempty"`

	// TimeoutSeconds bounds each provider call (default 45).
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	// RecordRateLimited controls whether denied calls are written to the
	// usage store as RATE_LIMITED events (default true).
	RecordRateLimited *bool `json:"record_rate_limited,omitempty" yaml:"record_rate_limited,omitempty"`
}

// Rate-limit backend identifiers.
const (
	LimitBackendMemory = "memory"
	LimitBackendRedis  = "redis"
)

// RateLimitConfig defines the per-caller quota and where the window table
// lives. The memory backend is per-process: behind N instances the effective
// quota becomes limit×N. Use the redis backend when the quota must hold
// globally.
type RateLimitConfig struct {
	// Limit is the maximum admitted calls per window (default 60).
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`
	// Window is the window length as a Go duration string (default "1h").
	Window string `json:"window,omitempty" yaml:"window,omitempty"`
	// Backend is "memory" (default) or "redis".
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	// RedisAddr is the host:port of the shared Redis (redis backend only).
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	// SweepInterval is how often the memory backend evicts expired windows
	// ("0" disables the sweeper; correctness does not depend on it).
	SweepInterval string `json:"sweep_interval,omitempty" yaml:"sweep_interval,omitempty"`
}

// Provider backend identifiers.
const (
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
)

// ProviderConfig selects the completion provider.
type ProviderConfig struct {
	// Name is "openai" (default) or "bedrock".
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Model overrides the backend's default model.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// BaseURL overrides the OpenAI API endpoint (openai only); lets the
	// gateway target any OpenAI-compatible server.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// Region is the AWS region (bedrock only).
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
}

// Usage backend identifiers.
const (
	UsageBackendNone     = "none"
	UsageBackendSQLite   = "sqlite"
	UsageBackendPostgres = "postgres"
)

// UsageConfig selects where invocation records are written.
type UsageConfig struct {
	// Backend is "sqlite" (default), "postgres", or "none".
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	// DSN is the database path (sqlite) or connection string (postgres).
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// ModeConfig tunes one mode's prompt profile. Zero values keep the built-in
// default for that field.
type ModeConfig struct {
	Mode         string   `json:"mode" yaml:"mode"`
	SystemPrompt string   `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}
