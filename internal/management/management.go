// Package management provides a lightweight, bearer-token-authenticated
// HTTP API for runtime inspection and tool-scope administration, adapted
// from the teacher's AI-domain-registry status endpoint
// (internal/management/management.go) — generalized from "list of
// intercepted domains" to "list of registered providers and callable
// tools".
//
// Endpoints:
//
//	GET  /status       - gateway health, registered providers, tool count
//	GET  /metrics      - Prometheus exposition (delegates to metrics.Collector)
//	GET  /tools        - list every registered tool name
//	POST /tools/add    - register a tool name {"name":"get_weather"}
//	POST /tools/remove - deregister a tool name {"name":"get_weather"}
package management

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/laplaque/llmguard/internal/adapter"
	"github.com/laplaque/llmguard/internal/config"
	"github.com/laplaque/llmguard/internal/metrics"
	"github.com/laplaque/llmguard/internal/types"
)

// ToolRegistry is the subset of *registry.Registry the management API
// needs. Declared locally so this package does not have to import
// internal/registry just to accept its concrete type.
type ToolRegistry interface {
	Has(name string) bool
	Add(name string) error
	Remove(name string) error
	All() []string
}

// Server is the management API server.
type Server struct {
	cfg       *config.Config
	startTime time.Time
	providers *adapter.Registry
	tools     ToolRegistry
	metrics   *metrics.Collector
	token     string
	log       *zap.SugaredLogger
}

// New constructs a management Server. tools or m may be nil: with no tools
// the /tools endpoints answer 503, and with no m /metrics is not mounted.
func New(cfg *config.Config, providers *adapter.Registry, tools ToolRegistry, m *metrics.Collector, log *zap.SugaredLogger) *Server {
	return &Server{
		cfg:       cfg,
		startTime: time.Now(),
		providers: providers,
		tools:     tools,
		metrics:   m,
		token:     cfg.ManagementToken,
		log:       log.Named("management"),
	}
}

// Handler returns the HTTP handler for the management API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/tools", s.handleListTools)
	mux.HandleFunc("/tools/add", s.handleAddTool)
	mux.HandleFunc("/tools/remove", s.handleRemoveTool)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return s.authMiddleware(mux)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(auth[len(prefix):])), []byte(s.token)) != 1 {
			s.log.Warnw("unauthorized management access attempt", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	type response struct {
		Status              string           `json:"status"`
		Uptime              string           `json:"uptime"`
		ProjectName         string           `json:"project_name"`
		SecurityTier        string           `json:"security_tier"`
		RedactPII           bool             `json:"redact_pii"`
		AllowedProviders    []types.Provider `json:"allowed_providers"`
		RegisteredProviders []types.Provider `json:"registered_providers,omitempty"`
		RegisteredTools     int              `json:"registered_tools,omitempty"`
	}

	resp := response{
		Status:           "running",
		Uptime:           time.Since(s.startTime).Round(time.Second).String(),
		ProjectName:      s.cfg.ProjectName,
		SecurityTier:     string(s.cfg.SecurityTier),
		RedactPII:        s.cfg.AgnosticSettings.RedactPII,
		AllowedProviders: s.cfg.AgnosticSettings.AllowedProviders,
	}
	if s.providers != nil {
		resp.RegisteredProviders = s.providers.RegisteredProviders()
	}
	if s.tools != nil {
		resp.RegisteredTools = len(s.tools.All())
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	if s.tools == nil {
		http.Error(w, "no skill registry configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.tools.All()})
}

type toolRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleAddTool(w http.ResponseWriter, r *http.Request) {
	s.mutateTool(w, r, func(name string) error { return s.tools.Add(name) }, "added")
}

func (s *Server) handleRemoveTool(w http.ResponseWriter, r *http.Request) {
	s.mutateTool(w, r, func(name string) error { return s.tools.Remove(name) }, "removed")
}

func (s *Server) mutateTool(w http.ResponseWriter, r *http.Request, apply func(string) error, verb string) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	if s.tools == nil {
		http.Error(w, "no skill registry configured", http.StatusServiceUnavailable)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1024)
	var req toolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, `invalid request: need {"name":"..."}`, http.StatusBadRequest)
		return
	}
	if err := apply(req.Name); err != nil {
		s.log.Errorw("tool mutation failed", "name", req.Name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.log.Infow("tool "+verb, "name", req.Name)
	writeJSON(w, http.StatusOK, map[string]string{verb: req.Name})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe starts the management HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Infow("management API listening", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
