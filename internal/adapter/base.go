package adapter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

// Fetcher is the transport fetch primitive used by adapters (§1: out of
// scope for this spec, a collaborator consumed through one interface).
// The base adapter never constructs an *http.Client itself — it is always
// handed a Fetcher, so a test can substitute a canned-response fake
// without a network.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryPolicy configures the base adapter's bounded exponential backoff
// (§4.9): maximum attempts, initial delay, and multiplier.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy matches the teacher's single-Ollama-query conservatism
// scaled up for a network call that's allowed to retry a few times.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond, Multiplier: 2.0}
}

// Base provides the retry/backoff, per-attempt timeout, outbound rate
// limiting, and cost computation shared by every concrete adapter (§4.9).
// Concrete adapters embed a *Base and call ExecuteWithRetry from their
// Execute method rather than re-implementing this machinery.
type Base struct {
	Fetcher        Fetcher
	Retry          RetryPolicy
	AttemptTimeout time.Duration
	Limiter        *rate.Limiter
}

// NewBase constructs a Base with the given fetcher, defaulting retry and
// timeout policy. requestsPerSecond <= 0 disables rate limiting.
func NewBase(fetcher Fetcher, requestsPerSecond float64) *Base {
	b := &Base{
		Fetcher:        fetcher,
		Retry:          DefaultRetryPolicy(),
		AttemptTimeout: 30 * time.Second,
	}
	if requestsPerSecond > 0 {
		b.Limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return b
}

// ErrAdapterExhausted wraps the error ExecuteWithRetry returns when it gives
// up: every attempt failed, or an attempt failed with a non-retryable error.
var ErrAdapterExhausted = errors.New("adapter: retries exhausted")

// permanent marks err as non-retryable, for a concrete adapter's attempt
// function to signal that a 4xx response means retrying cannot help.
func permanent(err error) error {
	return backoff.Permanent(err)
}

// ExecuteWithRetry runs attempt under the base's rate limiter, per-attempt
// timeout, and bounded exponential backoff. attempt should perform exactly
// one provider call and return a non-retryable error wrapped in
// backoff.Permanent when it knows retrying cannot help (e.g. a 4xx
// response).
func (b *Base) ExecuteWithRetry(ctx context.Context, attempt func(ctx context.Context) (any, error)) (any, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.Retry.InitialDelay
	bo.Multiplier = b.Retry.Multiplier

	op := func() (any, error) {
		if b.Limiter != nil {
			if err := b.Limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, b.AttemptTimeout)
		defer cancel()

		result, err := attempt(attemptCtx)
		if err != nil {
			if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("adapter: attempt timed out after %s: %w", b.AttemptTimeout, err)
			}
			return nil, err
		}
		return result, nil
	}

	maxAttempts := uint(b.Retry.MaxAttempts)
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	result, err := backoff.Retry(ctx, op, backoff.WithBackOff(bo), backoff.WithMaxTries(maxAttempts))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAdapterExhausted, err)
	}
	return result, nil
}

// ComputeCost implements the shared cost calculator (§4.9): divides both
// token counts by 1,000,000, multiplies by their respective per-million
// rates, sums, and rounds to six decimal places.
func ComputeCost(inputTokens, outputTokens int, inputRatePerMillion, outputRatePerMillion float64) float64 {
	cost := float64(inputTokens)/1_000_000*inputRatePerMillion +
		float64(outputTokens)/1_000_000*outputRatePerMillion
	return math.Round(cost*1_000_000) / 1_000_000
}
