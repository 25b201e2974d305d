package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	aicore "github.com/leadforge/ai-core"
	"github.com/leadforge/ai-core/internal/auth"
	"github.com/leadforge/ai-core/internal/logging"
	"github.com/leadforge/ai-core/internal/ratelimit"
	"github.com/leadforge/ai-core/internal/usage"
	"github.com/leadforge/ai-core/internal/version"
	"github.com/leadforge/ai-core/providers"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	var cfg aicore.Config
	if cfgPath := os.Getenv("AICORE_CONFIG"); cfgPath != "" {
		loaded, err := aicore.LoadConfig(cfgPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if err := aicore.ValidateConfig(*loaded); err != nil {
			log.Fatalf("Invalid config: %v", err)
		}
		cfg = *loaded
		log.Printf("Config loaded: provider=%s, limit backend=%s, usage backend=%s",
			orDefault(cfg.Provider.Name, aicore.ProviderOpenAI),
			orDefault(cfg.RateLimit.Backend, aicore.LimitBackendMemory),
			orDefault(cfg.Usage.Backend, aicore.UsageBackendSQLite))
	}

	gw, err := aicore.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}

	completer, err := buildCompleter(cfg.Provider)
	if err != nil {
		log.Fatalf("Provider: %v", err)
	}
	gw.UseCompleter(completer)
	log.Printf("Provider registered: %s", completer.Name())

	// Rate-limit backend. Memory is per-process; redis makes the quota hold
	// across instances.
	switch cfg.RateLimit.Backend {
	case aicore.LimitBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Redis at %s: %v", cfg.RateLimit.RedisAddr, err)
		}
		gw.UseLimitStore(ratelimit.NewRedis(client))
		log.Printf("Rate limits shared via redis at %s", cfg.RateLimit.RedisAddr)
	default:
		mem := ratelimit.NewMemory()
		if cfg.RateLimit.SweepInterval != "" {
			if d, perr := time.ParseDuration(cfg.RateLimit.SweepInterval); perr == nil && d > 0 {
				mem.StartSweeper(d)
				defer mem.Stop()
			}
		}
		gw.UseLimitStore(mem)
	}

	// Usage accounting backend.
	var usageLister usage.Lister
	var usagePurger usage.Purger
	switch cfg.Usage.Backend {
	case aicore.UsageBackendNone:
		gw.UseRecorder(usage.Noop{})
		log.Println("Usage accounting disabled")
	case aicore.UsageBackendPostgres:
		rec, rerr := usage.NewPostgres(cfg.Usage.DSN)
		if rerr != nil {
			log.Fatalf("Usage store (postgres): %v", rerr)
		}
		defer rec.Close()
		gw.UseRecorder(rec)
		usageLister, usagePurger = rec, rec
	default:
		rec, rerr := usage.NewSQLite(cfg.Usage.DSN)
		if rerr != nil {
			log.Fatalf("Usage store (sqlite): %v", rerr)
		}
		defer rec.Close()
		gw.UseRecorder(rec)
		usageLister, usagePurger = rec, rec
	}

	keys := auth.NewKeyStore()
	adminKey, err := keys.Create("bootstrap-admin", "", []string{auth.ScopeAssist, auth.ScopeAdmin}, nil)
	if err != nil {
		log.Fatalf("Failed to create bootstrap key: %v", err)
	}
	// Printed once at startup; rotate it via the admin API after onboarding.
	log.Printf("Bootstrap admin key: %s", adminKey.Key)

	var corsOrigins []string
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		corsOrigins = strings.Split(origins, ",")
	}

	r := newRouter(gw, keys, usageLister, usagePurger, corsOrigins)

	addr := ":8080"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Println("Shutting down gracefully…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("aicored %s listening on %s (provider=%s)", version.Short(), addr, completer.Name())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stop()
		log.Fatalf("Server error: %v", err) //nolint:gocritic
	}
	log.Println("Server stopped.")
}

// buildCompleter constructs the configured completion provider. OpenAI is the
// default; credentials always come from the environment, never the config
// file.
func buildCompleter(cfg aicore.ProviderConfig) (providers.Completer, error) {
	switch cfg.Name {
	case aicore.ProviderBedrock:
		region := cfg.Region
		if region == "" {
			region = os.Getenv("AWS_REGION")
		}
		return providers.NewBedrock(region, cfg.Model)
	default:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = os.Getenv("OPENAI_BASE_URL")
		}
		return providers.NewOpenAI(os.Getenv("OPENAI_API_KEY"), baseURL, cfg.Model)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
