package adapter

import (
	"fmt"
	"sync"

	"github.com/laplaque/llmguard/internal/types"
)

// Registry resolves a provider tag to its registered Adapter, gated by the
// configuration's allow-list (§4.10). It is mutated only during startup
// registration; after the first request it is read-only, so Resolve takes
// only a read lock.
type Registry struct {
	mu        sync.RWMutex
	allowed   map[types.Provider]bool
	providers map[types.Provider]Adapter
}

// NewRegistry constructs a Registry gated by allowed (typically
// config.Config.AllowedProviderSet()).
func NewRegistry(allowed map[types.Provider]bool) *Registry {
	return &Registry{
		allowed:   allowed,
		providers: make(map[types.Provider]Adapter),
	}
}

// Register associates an Adapter instance with a provider tag. Intended to
// be called once per provider during startup, before the first request.
func (r *Registry) Register(provider types.Provider, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider] = a
}

// ResolveError names why resolution failed, carrying the violation code the
// orchestrator should surface.
type ResolveError struct {
	Code    types.ViolationCode
	Message string
	Payload map[string]any
}

func (e *ResolveError) Error() string { return e.Message }

// Resolve looks up the adapter registered for provider. It fails with
// PROVIDER_NOT_ALLOWED both when the tag is outside the allow-list and
// when it is allowed but nothing has registered for it (§4.10) — the two
// cases are distinguished only by message, since both are equally "you
// cannot use this provider right now" from the caller's perspective.
func (r *Registry) Resolve(provider types.Provider) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.allowed[provider] {
		return nil, &ResolveError{
			Code:    types.CodeProviderNotAllowed,
			Message: fmt.Sprintf("provider %q is not in the allowed-providers list", provider),
			Payload: map[string]any{"requested_provider": provider, "allowed_providers": allowedList(r.allowed)},
		}
	}

	a, ok := r.providers[provider]
	if !ok {
		return nil, &ResolveError{
			Code:    types.CodeProviderNotAllowed,
			Message: fmt.Sprintf("provider %q is allowed but has no registered adapter", provider),
			Payload: map[string]any{"requested_provider": provider},
		}
	}
	return a, nil
}

// RegisteredProviders returns every provider tag with an adapter currently
// registered, for status reporting.
func (r *Registry) RegisteredProviders() []types.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Provider, 0, len(r.providers))
	for p := range r.providers {
		out = append(out, p)
	}
	return out
}

func allowedList(set map[types.Provider]bool) []types.Provider {
	out := make([]types.Provider, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}
