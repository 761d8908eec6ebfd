// Package adapter defines the provider contract (§4.8), its shared base
// behavior (§4.9), and the allow-list-gated registry (§4.10). No concrete
// adapter type ever escapes this package boundary in a form the
// orchestrator can see directly — the orchestrator works only through the
// Adapter interface.
package adapter

import (
	"context"

	"github.com/laplaque/llmguard/internal/types"
)

// Capability is a closed-ish tag naming a feature an adapter may or may not
// support for a given model (e.g. tool use, vision). New capabilities are
// added as the provider surface grows; the set is intentionally open
// because it is adapter-internal self-reporting, not a wire contract.
type Capability string

// Capabilities every reference adapter understands.
const (
	CapabilityToolUse      Capability = "tool_use"
	CapabilitySystemPrompt Capability = "system_prompt"
	CapabilityStreaming    Capability = "streaming"
)

// Adapter is the four-method provider boundary (§4.8). Implementations
// translate canonical shapes to and from a provider-specific wire format,
// but the methods themselves only ever accept/return canonical types.Request
// or opaque `any` provider-shaped values — never a type the orchestrator
// would need to import a provider SDK to use.
type Adapter interface {
	// TransformRequest converts a canonical request into a provider-shaped
	// value. It fails if a requested capability is unsupported by the
	// model (e.g. tool definitions present but the model has no tool-use
	// capability).
	TransformRequest(req types.Request) (any, error)

	// Execute performs the provider call: transport, retry, and timeout
	// are the adapter's responsibility (§4.9). It is the pipeline's only
	// suspension point.
	Execute(ctx context.Context, providerRequest any) (any, error)

	// TransformResponse maps a provider-shaped response into the shape the
	// schema enforcer expects (a map[string]any mirroring types.Response's
	// JSON form). It must collapse every provider-specific finish state
	// into one of the four canonical FinishReason values; unknown states
	// collapse to content_filter.
	TransformResponse(raw any, requestID string) (any, error)

	// ValidateCapabilities is a read-only self-report from a model→feature
	// matrix; it never performs I/O.
	ValidateCapabilities(model string, capability Capability) bool
}
