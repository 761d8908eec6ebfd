// Package ledger provides the reference Cost Ledger collaborator (spec §6):
// record/total/wouldExceed over per-session accumulated cost. It is out of
// the core's scope — the orchestrator only ever sees pipeline.Ledger's
// single WouldExceed method, and only when Options.LedgerCheck opts in
// (§9 open question) — but this package gives that collaborator a real,
// testable backing, grounded on the pack's Redis cache wiring
// (taipm-go-deep-agent/agent/cache_redis.go) generalized from string
// key/value caching to float64 accumulation via INCRBYFLOAT.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger accumulates per-session cost and answers pre-flight "would this
// push the session over its ceiling" questions (§6).
type Ledger interface {
	Record(ctx context.Context, sessionID string, costUSD float64) error
	Total(ctx context.Context, sessionID string) (float64, error)
	WouldExceed(sessionID string, additionalUSD, ceilingUSD float64) bool

	// Sweep trims sessions whose last Record call is older than olderThan,
	// returning how many were removed. Run periodically (e.g. by a cron
	// job) so an abandoned session's entry does not accumulate forever.
	Sweep(ctx context.Context, olderThan time.Duration) (int, error)
}

// memoryLedger is the zero-dependency fallback used when no Redis address
// is configured (config.Config.RedisAddr == "").
type memoryLedger struct {
	mu       sync.Mutex
	totals   map[string]float64
	lastSeen map[string]time.Time
	now      func() time.Time
}

// NewMemory constructs an in-process Ledger. Never returns an error; it
// exists so callers can always have a working Ledger even with no Redis
// deployed, matching the spec's framing of the ledger as an optional
// collaborator rather than a hard dependency.
func NewMemory() Ledger {
	return &memoryLedger{
		totals:   make(map[string]float64),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (l *memoryLedger) Record(_ context.Context, sessionID string, costUSD float64) error {
	l.mu.Lock()
	l.totals[sessionID] += costUSD
	l.lastSeen[sessionID] = l.now()
	l.mu.Unlock()
	return nil
}

func (l *memoryLedger) Total(_ context.Context, sessionID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals[sessionID], nil
}

func (l *memoryLedger) WouldExceed(sessionID string, additionalUSD, ceilingUSD float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals[sessionID]+additionalUSD > ceilingUSD
}

func (l *memoryLedger) Sweep(_ context.Context, olderThan time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-olderThan)
	removed := 0
	for sessionID, seen := range l.lastSeen {
		if seen.Before(cutoff) {
			delete(l.totals, sessionID)
			delete(l.lastSeen, sessionID)
			removed++
		}
	}
	return removed, nil
}

const keyPrefix = "llmguard:ledger:"

// redisLedger backs the same interface with a shared Redis instance,
// serializing each session's read-modify-write via INCRBYFLOAT rather than
// a client-side lock (§5: the ledger "must serialize its read-modify-write
// sequence").
type redisLedger struct {
	client redis.UniversalClient
}

// NewRedis constructs a Ledger backed by addr. Callers in tests should
// point addr at a miniredis instance instead of a real Redis deployment.
func NewRedis(addr string) Ledger {
	return &redisLedger{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// NewRedisClient wraps an already-constructed client (e.g. one pointed at
// miniredis in tests, or a redis.UniversalClient cluster client in
// production).
func NewRedisClient(client redis.UniversalClient) Ledger {
	return &redisLedger{client: client}
}

func (l *redisLedger) key(sessionID string) string {
	return keyPrefix + sessionID
}

// sweepTTL is refreshed on every Record call so an abandoned session's key
// expires naturally — Redis's own TTL mechanism does the trimming, which
// is why redisLedger.Sweep below is a no-op rather than a scan.
const sweepTTL = 7 * 24 * time.Hour

func (l *redisLedger) Record(ctx context.Context, sessionID string, costUSD float64) error {
	key := l.key(sessionID)
	if err := l.client.IncrByFloat(ctx, key, costUSD).Err(); err != nil {
		return fmt.Errorf("ledger: record: %w", err)
	}
	if err := l.client.Expire(ctx, key, sweepTTL).Err(); err != nil {
		return fmt.Errorf("ledger: refresh expiry: %w", err)
	}
	return nil
}

func (l *redisLedger) Total(ctx context.Context, sessionID string) (float64, error) {
	v, err := l.client.Get(ctx, l.key(sessionID)).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ledger: total: %w", err)
	}
	return v, nil
}

// WouldExceed is pessimistic: it uses a background context and treats a
// Redis error as "assume the worst" (exceeds), since a ledger that cannot
// be consulted should not silently wave a request through (§6: "pessimistic
// using the pre-call estimate").
func (l *redisLedger) WouldExceed(sessionID string, additionalUSD, ceilingUSD float64) bool {
	total, err := l.Total(context.Background(), sessionID)
	if err != nil {
		return true
	}
	return total+additionalUSD > ceilingUSD
}

// Sweep is a no-op for the Redis backend: every key's TTL is refreshed on
// Record, so Redis itself expires an abandoned session's entry. olderThan
// is accepted to satisfy the Ledger interface but otherwise unused.
func (l *redisLedger) Sweep(_ context.Context, _ time.Duration) (int, error) {
	return 0, nil
}
