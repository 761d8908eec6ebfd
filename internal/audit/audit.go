// Package audit defines the Audit Log collaborator (§6): a structured
// per-call entry consumed by an injected Sink. The core never depends on
// how (or whether) entries are persisted — audit log sinks are explicitly
// out of scope for this spec's core (§1) and are treated as a one-method
// collaborator.
package audit

import (
	"time"

	"github.com/laplaque/llmguard/internal/types"
)

// Outcome is the closed pass/blocked tag recorded per call.
type Outcome string

// Closed set of audit outcomes.
const (
	OutcomePass    Outcome = "pass"
	OutcomeBlocked Outcome = "blocked"
)

// Entry is one structured audit record (§6).
type Entry struct {
	Timestamp      time.Time        `json:"timestamp"`
	RequestID      string           `json:"request_id"`
	Provider       types.Provider   `json:"provider"`
	Model          string           `json:"model"`
	SessionID      string           `json:"session_id,omitempty"`
	Interceptors   []types.Interceptor `json:"interceptors_run"`
	Violations     []types.Violation   `json:"violations"`
	Outcome        Outcome          `json:"outcome"`
	InputTokens    int              `json:"input_tokens"`
	OutputTokens   int              `json:"output_tokens"`
	CostUSD        float64          `json:"cost_usd"`
	DurationMillis int64            `json:"duration_ms"`
}

// Sink consumes one Entry per pipeline call. Implementations must tolerate
// concurrent calls (§5) — the orchestrator never serializes calls to Sink.
type Sink interface {
	Record(Entry)
}

// NopSink discards every entry. It is the default when no audit collaborator
// is injected, so the orchestrator never needs a nil check at every call
// site.
type NopSink struct{}

// Record implements Sink by discarding entry.
func (NopSink) Record(Entry) {}
