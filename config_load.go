package aicore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leadforge/ai-core/internal/modes"
)

// LoadConfig reads and parses a config file from the given path.
// Supported formats: JSON (.json), YAML (.yaml, .yml).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}

	return &cfg, nil
}

// ValidateConfig validates a Config for correctness. Zero values are legal
// wherever a default exists; only contradictory or unparsable settings fail.
func ValidateConfig(cfg Config) error {
	if cfg.RateLimit.Limit < 0 {
		return fmt.Errorf("rate_limit.limit must not be negative")
	}
	if err := validDuration("rate_limit.window", cfg.RateLimit.Window); err != nil {
		return err
	}
	if err := validDuration("rate_limit.sweep_interval", cfg.RateLimit.SweepInterval); err != nil {
		return err
	}

	switch cfg.RateLimit.Backend {
	case "", LimitBackendMemory:
	case LimitBackendRedis:
		if cfg.RateLimit.RedisAddr == "" {
			return fmt.Errorf("rate_limit.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown rate_limit.backend: %q", cfg.RateLimit.Backend)
	}

	switch cfg.Provider.Name {
	case "", ProviderOpenAI, ProviderBedrock:
	default:
		return fmt.Errorf("unknown provider.name: %q", cfg.Provider.Name)
	}

	switch cfg.Usage.Backend {
	case "", UsageBackendNone, UsageBackendSQLite, UsageBackendPostgres:
	default:
		return fmt.Errorf("unknown usage.backend: %q", cfg.Usage.Backend)
	}
	if cfg.Usage.Backend == UsageBackendPostgres && cfg.Usage.DSN == "" {
		return fmt.Errorf("usage.dsn is required for the postgres backend")
	}

	if cfg.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative")
	}

	// Mode overrides must target members of the closed set.
	reg := modes.NewRegistry()
	for _, m := range cfg.Modes {
		if _, _, err := reg.Resolve(m.Mode); err != nil {
			return fmt.Errorf("modes: %w", err)
		}
	}

	return nil
}

func validDuration(field, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must not be negative", field)
	}
	return nil
}
