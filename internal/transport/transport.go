// Package transport is the gateway's HTTP front door, adapted from the
// teacher's TLS-terminating h2srv server (internal/mitm/mitm.go). The
// original served intercepted, decrypted traffic over a hijacked
// connection; this server has nothing to intercept — callers talk to it
// directly — so the TLS/CA-certificate machinery is dropped, but the same
// tuned http2.Server knobs carry over via h2c (HTTP/2 over cleartext), and
// the handler is adapted from forwarding raw bytes to decoding one
// canonical types.Request and invoking the interceptor pipeline.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/laplaque/llmguard/internal/adapter"
	"github.com/laplaque/llmguard/internal/config"
	"github.com/laplaque/llmguard/internal/pipeline"
	"github.com/laplaque/llmguard/internal/types"
)

// Metrics is the subset of metrics.Collector the transport layer records
// against, declared locally so this package does not need to import
// internal/metrics just to accept its concrete type.
type Metrics interface {
	RecordOutcome(provider types.Provider, passed bool)
	RecordViolation(v types.Violation)
	RecordCost(provider types.Provider, usd float64)
}

// Server is the HTTP front door that decodes inbound requests, resolves
// the requested provider's adapter, runs the interceptor pipeline, and
// writes back the canonical response.
type Server struct {
	registry *adapter.Registry
	cfg      func() *config.Config
	opts     pipeline.Options
	metrics  Metrics
	log      *zap.SugaredLogger
}

// New constructs a Server. cfg is called once per request so a hot-reloaded
// configuration (see config.Watcher.Current) is picked up without
// restarting the server.
func New(registry *adapter.Registry, cfg func() *config.Config, opts pipeline.Options, m Metrics, log *zap.SugaredLogger) *Server {
	return &Server{registry: registry, cfg: cfg, opts: opts, metrics: m, log: log.Named("transport")}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat", s.handleChat)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 8<<20) // 8 MiB

	var req types.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	cfg := s.cfg()
	a, err := s.registry.Resolve(req.Provider)
	if err != nil {
		resp := blockedResponse(req.ID, err)
		s.writeResponse(w, resp)
		if rerr, ok := err.(*adapter.ResolveError); ok {
			s.recordViolation(types.NewViolation(rerr.Code, types.InterceptorOrchestrator, rerr.Message, rerr.Payload))
		}
		return
	}

	resp, violations := pipeline.RunPipeline(r.Context(), req, a, cfg, s.opts)

	if s.metrics != nil {
		s.metrics.RecordOutcome(req.Provider, len(violations) == 0)
		s.metrics.RecordCost(req.Provider, resp.Usage.CostUSD)
		for _, v := range violations {
			s.metrics.RecordViolation(v)
		}
	}

	s.writeResponse(w, resp)
}

func (s *Server) recordViolation(v types.Violation) {
	if s.metrics != nil {
		s.metrics.RecordViolation(v)
	}
}

func (s *Server) writeResponse(w http.ResponseWriter, resp types.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Errorw("failed to encode response", "error", err)
	}
}

func blockedResponse(requestID string, _ error) types.Response {
	return types.Response{
		SchemaVersion: types.SchemaVersion,
		ID:            requestID,
		ModelUsed:     "guardrail",
		FinishReason:  types.FinishContentFilter,
	}
}

// Run starts the front door on addr, serving HTTP/2 over cleartext (h2c)
// so a trusted internal caller can multiplex requests without TLS
// termination at this hop, falling back to HTTP/1.1 for clients that don't
// upgrade. The h2 tuning mirrors the teacher's TLS-terminating h2srv
// configuration. Run blocks until ctx is cancelled, at which point it
// drains in-flight requests and returns.
func (s *Server) Run(ctx context.Context, addr string) error {
	h2s := &http2.Server{
		MaxConcurrentStreams:      250,
		MaxDecoderHeaderTableSize: 4096,
		MaxEncoderHeaderTableSize: 4096,
		MaxReadFrameSize:          1 << 20,
		IdleTimeout:               90 * time.Second,
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(s.routes(), h2s),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("front door listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
