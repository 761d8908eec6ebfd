package types

// Request is the canonical, provider-agnostic inbound shape. It is owned by
// the orchestrator for the duration of one call. The PII masker produces a
// new Request value rather than mutating this one — callers must treat a
// Request as immutable once handed to the pipeline.
type Request struct {
	// ID is the caller-chosen request identifier. Must be non-empty.
	ID string `json:"id"`

	// Provider is the requested back end. Must be in the policy's
	// allowed-providers list to pass alignment.
	Provider Provider `json:"provider"`

	// Model is the provider-specific model identifier string. The core
	// does not interpret it beyond passing it to the adapter.
	Model string `json:"model"`

	// System is the optional system prompt.
	System string `json:"system,omitempty"`

	// Messages is the ordered conversation history.
	Messages []Message `json:"messages"`

	// Tools is the optional set of tool definitions available to the model.
	Tools []ToolDefinition `json:"tools,omitempty"`

	// MaxOutputTokens is an optional hint capping generation length.
	MaxOutputTokens *int `json:"max_output_tokens,omitempty"`

	// SessionID is optional; when present it keys cost-ledger aggregation.
	SessionID string `json:"session_id,omitempty"`
}

// Message is one turn of the conversation. Content is either a plain
// string (TextContent) or an ordered sequence of content blocks (Blocks) —
// exactly one of the two is populated.
type Message struct {
	Role Role `json:"role"`

	// TextContent holds the message body when it is a single string.
	TextContent string `json:"text_content,omitempty"`

	// Blocks holds the message body when it is an ordered sequence of
	// content blocks (e.g. a tool-result payload nested under Content).
	Blocks []ContentBlock `json:"blocks,omitempty"`
}

// IsBlockForm reports whether the message content is block-form rather
// than a single string.
func (m Message) IsBlockForm() bool {
	return len(m.Blocks) > 0
}

// ContentBlock carries either plain text or a nested tool-result payload.
// Both fields are walked recursively by the PII masker and the injection
// scanner.
type ContentBlock struct {
	Text    string          `json:"text,omitempty"`
	Content []ContentBlock  `json:"content,omitempty"`
}

// ToolDefinition describes one callable tool available to the model.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// InputSchema is opaque to the core; its internal shape is never
	// interpreted here, only forwarded to the adapter and, optionally,
	// validated by an injected Skill Registry.
	InputSchema any `json:"input_schema"`
}

// Clone returns a deep copy of the request. Used by the PII masker so the
// original request value is never mutated (§3 invariant, §9 design note).
func (r Request) Clone() Request {
	out := r
	if r.Messages != nil {
		out.Messages = make([]Message, len(r.Messages))
		for i, m := range r.Messages {
			out.Messages[i] = m.clone()
		}
	}
	if r.Tools != nil {
		out.Tools = make([]ToolDefinition, len(r.Tools))
		copy(out.Tools, r.Tools)
	}
	if r.MaxOutputTokens != nil {
		v := *r.MaxOutputTokens
		out.MaxOutputTokens = &v
	}
	return out
}

func (m Message) clone() Message {
	out := m
	if m.Blocks != nil {
		out.Blocks = make([]ContentBlock, len(m.Blocks))
		for i, b := range m.Blocks {
			out.Blocks[i] = b.clone()
		}
	}
	return out
}

func (b ContentBlock) clone() ContentBlock {
	out := b
	if b.Content != nil {
		out.Content = make([]ContentBlock, len(b.Content))
		for i, c := range b.Content {
			out.Content[i] = c.clone()
		}
	}
	return out
}
