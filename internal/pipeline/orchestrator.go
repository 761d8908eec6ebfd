// Package pipeline implements the six-stage interceptor chain (§4.11): the
// single place that knows the fixed stage order, the short-circuit rules,
// and how to synthesize a blocked canonical response. Nothing upstream of
// RunPipeline's (response, violations) return ever sees a provider-native
// shape, a panic, or a bare error.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/laplaque/llmguard/internal/adapter"
	"github.com/laplaque/llmguard/internal/audit"
	"github.com/laplaque/llmguard/internal/config"
	"github.com/laplaque/llmguard/internal/interceptors"
	"github.com/laplaque/llmguard/internal/types"
)

// Ledger is the optional cost-ledger collaborator (§6, §9 open question).
// The default pipeline never consults it — Options.LedgerCheck must be set
// explicitly, since the spec's alignment checker uses only the pre-flight
// estimate.
type Ledger interface {
	WouldExceed(sessionID string, additionalUSD, ceilingUSD float64) bool
}

// Options carries the orchestrator's optional collaborators (§1: Skill
// Registry, audit log, cost ledger — all out of core scope, all consumed
// through one-method interfaces).
type Options struct {
	Registry    interceptors.SkillRegistry
	Audit       audit.Sink
	Ledger      Ledger
	LedgerCheck bool
	Log         *zap.SugaredLogger
}

func (o Options) logger() *zap.SugaredLogger {
	if o.Log != nil {
		return o.Log
	}
	return zap.NewNop().Sugar()
}

func (o Options) auditSink() audit.Sink {
	if o.Audit != nil {
		return o.Audit
	}
	return audit.NopSink{}
}

// RunPipeline executes the fixed six-stage chain against req using a
// already-resolved adapter and the active configuration. It never panics
// and never returns an error: every failure mode is folded into the
// returned violations slice (§4.11, §7).
func RunPipeline(ctx context.Context, req types.Request, a adapter.Adapter, cfg *config.Config, opts Options) (types.Response, []types.Violation) {
	start := time.Now()
	log := opts.logger().Named("orchestrator")

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	var run []types.Interceptor
	record := func(resp types.Response, violations []types.Violation, outcome audit.Outcome) (types.Response, []types.Violation) {
		opts.auditSink().Record(audit.Entry{
			Timestamp:      time.Now(),
			RequestID:      req.ID,
			Provider:       req.Provider,
			Model:          req.Model,
			SessionID:      req.SessionID,
			Interceptors:   run,
			Violations:     violations,
			Outcome:        outcome,
			InputTokens:    resp.Usage.InputTokens,
			OutputTokens:   resp.Usage.OutputTokens,
			CostUSD:        resp.Usage.CostUSD,
			DurationMillis: time.Since(start).Milliseconds(),
		})
		return resp, violations
	}

	// 1. injection scanner
	run = append(run, types.InterceptorInjection)
	injectionResult := interceptors.ScanInjection(req, cfg.SecurityTier)
	if injectionResult.Blocked() {
		log.Infow("blocked at injection scanner", "request_id", req.ID)
		return record(blockedResponse(req.ID), injectionResult.Violations(), audit.OutcomeBlocked)
	}

	// 2. PII masker — always passes, output becomes the working request.
	run = append(run, types.InterceptorPII)
	masked := interceptors.MaskRequest(req, cfg.AgnosticSettings.RedactPII).Value()

	// 3. alignment checker
	run = append(run, types.InterceptorAlignment)
	alignmentResult := interceptors.CheckAlignment(masked, interceptors.AlignmentPolicy{
		AllowedProviders:     cfg.AllowedProviderSet(),
		MaxTokenSpendPerCall: cfg.AgnosticSettings.MaxTokenSpendPerCall,
	}, opts.Registry)
	if alignmentResult.Blocked() {
		log.Infow("blocked at alignment checker", "request_id", req.ID)
		return record(blockedResponse(req.ID), alignmentResult.Violations(), audit.OutcomeBlocked)
	}
	masked = alignmentResult.Value()

	if opts.LedgerCheck && opts.Ledger != nil && masked.SessionID != "" {
		estimatedCost := alignmentEstimatedCost(masked)
		if opts.Ledger.WouldExceed(masked.SessionID, estimatedCost, cfg.AgnosticSettings.MaxTokenSpendPerCall) {
			v := types.NewViolation(types.CodeBudgetExceeded, types.InterceptorOrchestrator,
				fmt.Sprintf("session %q cumulative spend would exceed ceiling %.6f", masked.SessionID, cfg.AgnosticSettings.MaxTokenSpendPerCall),
				map[string]any{"session_id": masked.SessionID, "ceiling": cfg.AgnosticSettings.MaxTokenSpendPerCall})
			log.Infow("blocked at ledger check", "request_id", req.ID)
			return record(blockedResponse(req.ID), []types.Violation{v}, audit.OutcomeBlocked)
		}
	}

	// 4. transformRequest + execute — the pipeline's only suspension point.
	providerReq, err := a.TransformRequest(masked)
	if err != nil {
		return record(blockedResponse(req.ID), []types.Violation{adapterErrorViolation(err, req.Provider)}, audit.OutcomeBlocked)
	}

	raw, err := a.Execute(ctx, providerReq)
	if err != nil {
		return record(blockedResponse(req.ID), []types.Violation{adapterErrorViolation(err, req.Provider)}, audit.OutcomeBlocked)
	}

	rawResp, err := a.TransformResponse(raw, req.ID)
	if err != nil {
		return record(blockedResponse(req.ID), []types.Violation{adapterErrorViolation(err, req.Provider)}, audit.OutcomeBlocked)
	}

	// Outbound stages only run once the inbound path and the provider call
	// have succeeded (§6: "the three outbound only when the inbound path
	// passed").

	// 6. schema enforcer
	run = append(run, types.InterceptorSchema)
	schemaResult := interceptors.EnforceSchema(rawResp)
	if schemaResult.Blocked() {
		log.Infow("blocked at schema enforcer", "request_id", req.ID)
		return record(blockedResponse(req.ID), schemaResult.Violations(), audit.OutcomeBlocked)
	}
	resp := schemaResult.Value()

	// 7. tool grounder
	run = append(run, types.InterceptorGrounding)
	groundingResult := interceptors.GroundToolCalls(resp, opts.Registry)
	if groundingResult.Blocked() {
		log.Infow("blocked at tool grounder", "request_id", req.ID)
		return record(blockedResponse(req.ID), groundingResult.Violations(), audit.OutcomeBlocked)
	}
	resp = groundingResult.Value()

	// 8. hallucination scraper — the one outbound block that preserves the
	// real response body rather than synthesizing a blank one (§4.11).
	run = append(run, types.InterceptorHallucination)
	hallucinationResult := interceptors.ScrapeHallucinations(resp, cfg.DependencyWhitelist)
	if hallucinationResult.Blocked() {
		log.Infow("flagged at hallucination scraper", "request_id", req.ID)
		resp.FinishReason = types.FinishContentFilter
		return record(resp, hallucinationResult.Violations(), audit.OutcomeBlocked)
	}

	return record(resp, nil, audit.OutcomePass)
}

// blockedResponse synthesizes the canonical blocked-path response (§4.11).
func blockedResponse(requestID string) types.Response {
	return types.Response{
		SchemaVersion: types.SchemaVersion,
		ID:            requestID,
		ModelUsed:     "guardrail",
		Content:       nil,
		ToolCalls:     nil,
		FinishReason:  types.FinishContentFilter,
		Usage:         types.Usage{},
	}
}

// adapterErrorViolation wraps any adapter-surfaced error — transport
// failure, retry exhaustion, timeout, unsupported capability — into the
// single ADAPTER_ERROR violation the pipeline is allowed to report (§4.8,
// §4.9, §7). The payload names the provider, which the metrics collector
// uses to label its adapter-error counter.
func adapterErrorViolation(err error, provider types.Provider) types.Violation {
	return types.NewViolation(types.CodeAdapterError, types.InterceptorOrchestrator, err.Error(),
		map[string]any{"provider": string(provider)})
}

// alignmentEstimatedCost recomputes the pre-flight cost estimate for the
// ledger check, mirroring the alignment checker's own calculation so the
// ledger is consulted with the same figure alignment already validated
// against the per-call ceiling.
func alignmentEstimatedCost(req types.Request) float64 {
	const conservativePerTokenUSD = 15.0 / 1_000_000
	total := 0
	for _, m := range req.Messages {
		total += len(m.TextContent)
		for _, b := range m.Blocks {
			total += blockTextLen(b)
		}
	}
	total += len(req.System)
	estimatedTokens := (total + 3) / 4
	return float64(estimatedTokens) * conservativePerTokenUSD
}

func blockTextLen(b types.ContentBlock) int {
	n := len(b.Text)
	for _, c := range b.Content {
		n += blockTextLen(c)
	}
	return n
}
