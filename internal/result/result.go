// Package result implements the interceptor-result carrier: a tagged value
// with two variants, "pass" (optionally carrying a transformed payload) and
// "block" (carrying one or more violations). Interceptors return this value
// instead of throwing or panicking — it is the load-bearing invariant of
// the whole pipeline (§4.1, §9).
package result

import "github.com/laplaque/llmguard/internal/types"

// Result is a generic pass/block carrier. T is the type of the payload an
// interceptor produces on pass (e.g. a masked types.Request, or a typed
// types.Response). Use Pass/Block to construct one; use Blocked/Value to
// inspect it.
type Result[T any] struct {
	blocked    bool
	value      T
	violations []types.Violation
}

// Pass builds a passing Result carrying value.
func Pass[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Block builds a blocking Result carrying one or more violations. Block
// panics if called with zero violations — a block with no violations is a
// contradiction in terms and indicates a bug in the calling interceptor,
// not a runtime condition callers should handle.
func Block[T any](violations ...types.Violation) Result[T] {
	if len(violations) == 0 {
		panic("result.Block called with no violations")
	}
	return Result[T]{blocked: true, violations: violations}
}

// Blocked reports whether this Result is the block variant.
func (r Result[T]) Blocked() bool { return r.blocked }

// Value returns the pass-variant payload. Calling it on a blocked Result
// returns the zero value of T; callers must check Blocked first.
func (r Result[T]) Value() T { return r.value }

// Violations returns the blocking violations, or nil on a passing Result.
func (r Result[T]) Violations() []types.Violation { return r.violations }
