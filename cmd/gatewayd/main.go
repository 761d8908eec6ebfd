// Command gatewayd is the policy-enforcing LLM proxy gateway.
//
// It terminates inbound chat requests over HTTP/2 cleartext and runs them
// through the six-stage interceptor pipeline: injection scan, PII masking
// and alignment check before the resolved provider adapter is called;
// schema enforcement, tool grounding and hallucination scrape on its
// response. A separate management API, gated by a bearer token, exposes
// status, Prometheus metrics, and runtime tool-registry mutation.
//
// Usage:
//
//	./gatewayd -config policy.json
//
// The policy document is hot-reloaded (internal/config.Watcher): each
// pipeline call uses the latest valid version. The provider adapter
// registry and the management API keep the allow-list and settings read at
// startup.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/laplaque/llmguard/internal/adapter"
	"github.com/laplaque/llmguard/internal/audit"
	"github.com/laplaque/llmguard/internal/config"
	"github.com/laplaque/llmguard/internal/ledger"
	"github.com/laplaque/llmguard/internal/logger"
	"github.com/laplaque/llmguard/internal/management"
	"github.com/laplaque/llmguard/internal/metrics"
	"github.com/laplaque/llmguard/internal/pipeline"
	"github.com/laplaque/llmguard/internal/registry"
	"github.com/laplaque/llmguard/internal/transport"
	"github.com/laplaque/llmguard/internal/types"
)

const sweepTTL = 24 * time.Hour

func main() {
	configPath := flag.String("config", "policy.json", "path to the policy configuration document")
	addr := flag.String("addr", ":8443", "front-door listen address")
	managementAddr := flag.String("management-addr", ":9443", "management API listen address")
	flag.Parse()

	watcher, err := config.NewWatcher(*configPath, logger.New("config", os.Getenv("LOG_LEVEL")))
	if err != nil {
		log.Fatalf("[CONFIG] fatal: %v", err)
	}
	defer watcher.Close() //nolint:errcheck // best-effort close on shutdown

	cfg := watcher.Current()
	log := logger.New("gatewayd", cfg.LogLevel)

	printBanner(cfg, *addr, *managementAddr)

	m := metrics.New()

	tools, err := registry.Open(cfg.SkillRegistryPath)
	if err != nil {
		log.Fatalw("failed to open skill registry", "error", err)
	}
	defer tools.Close() //nolint:errcheck // best-effort close on shutdown

	var costLedger ledger.Ledger
	if cfg.RedisAddr != "" {
		costLedger = ledger.NewRedis(cfg.RedisAddr)
		log.Infow("cost ledger backed by redis", "addr", cfg.RedisAddr)
	} else {
		costLedger = ledger.NewMemory()
		log.Infow("cost ledger running in-memory")
	}

	providers := adapter.NewRegistry(cfg.AllowedProviderSet())
	registerAdapters(providers, cfg, log)

	auditSink := audit.NopSink{}

	opts := pipeline.Options{
		Registry: tools,
		Audit:    auditSink,
		Ledger:   costLedger,
		Log:      logger.Named(log, "pipeline"),
	}

	front := transport.New(providers, watcher.Current, opts, m, logger.Named(log, "transport"))
	mgmt := management.New(cfg, providers, tools, m, logger.Named(log, "management"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@hourly", func() {
		removed, err := costLedger.Sweep(ctx, sweepTTL)
		if err != nil {
			log.Warnw("ledger sweep failed", "error", err)
			return
		}
		if removed > 0 {
			log.Infow("ledger sweep removed stale sessions", "removed", removed)
		}
	}); err != nil {
		log.Fatalw("failed to schedule ledger sweep", "error", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	errCh := make(chan error, 2)

	go func() {
		log.Infow("management API listening", "addr", *managementAddr)
		if err := mgmt.ListenAndServe(*managementAddr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("management: %w", err)
		}
	}()

	go func() {
		errCh <- front.Run(ctx, *addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalw("fatal server error", "error", err)
		}
	case <-ctx.Done():
		log.Infow("shutting down")
	}
}

// registerAdapters wires every recognized provider tag to a concrete
// adapter instance. A provider present in the allow-list but missing its
// environment-supplied credential is skipped with a warning rather than
// failing startup — Registry.Resolve already turns "allowed but
// unregistered" into a PROVIDER_NOT_ALLOWED violation at request time.
func registerAdapters(providers *adapter.Registry, cfg *config.Config, log interface {
	Infow(string, ...any)
	Warnw(string, ...any)
}) {
	allowed := cfg.AllowedProviderSet()
	httpClient := &http.Client{Timeout: 60 * time.Second}

	if allowed[types.ProviderAnthropic] {
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			providers.Register(types.ProviderAnthropic, adapter.NewAnthropicAdapter(key, httpClient, 5))
			log.Infow("registered adapter", "provider", types.ProviderAnthropic)
		} else {
			log.Warnw("provider allowed but ANTHROPIC_API_KEY unset, leaving unregistered", "provider", types.ProviderAnthropic)
		}
	}

	if allowed[types.ProviderOpenAI] {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			providers.Register(types.ProviderOpenAI, adapter.NewOpenAIAdapter(key, "", 5))
			log.Infow("registered adapter", "provider", types.ProviderOpenAI)
		} else {
			log.Warnw("provider allowed but OPENAI_API_KEY unset, leaving unregistered", "provider", types.ProviderOpenAI)
		}
	}

	if allowed[types.ProviderLocalOllama] {
		endpoint := os.Getenv("OLLAMA_ENDPOINT")
		if endpoint == "" {
			endpoint = "http://localhost:11434"
		}
		providers.Register(types.ProviderLocalOllama, adapter.NewOllamaAdapter(endpoint, httpClient))
		log.Infow("registered adapter", "provider", types.ProviderLocalOllama, "endpoint", endpoint)
	}
}

func printBanner(cfg *config.Config, addr, managementAddr string) {
	fmt.Printf(`
╔══════════════════════════════════════════════════════╗
║              LLM Policy Gateway  (Go)                ║
╚══════════════════════════════════════════════════════╝
  Project         : %s
  Security tier   : %s
  Front door      : %s  (h2c)
  Management API  : %s
  Allowed providers: %v
  Redact PII      : %v

  Send a request:
    curl --http2-prior-knowledge -XPOST http://localhost%s/v1/chat -d '{...}'

  Check status:
    curl -H "Authorization: Bearer $MANAGEMENT_TOKEN" http://localhost%s/status
`, cfg.ProjectName, cfg.SecurityTier, addr, managementAddr,
		cfg.AgnosticSettings.AllowedProviders, cfg.AgnosticSettings.RedactPII,
		addr, managementAddr)
}
