package engine

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/krisalay/forecast-cache/expiration"
	"github.com/krisalay/forecast-cache/types"
)

/*
CacheEngine is the "brain" of the cache system.
It is responsible for the "behavior" of the cache, NOT storage.
This acts as the policy layer shared by the coordinator and the sweeper.

It decides:
- When an entry is fresh, stale or dead
- What time it is (real clock in production, fake clock in tests)
- How long a waiter may block on somebody else's computation
- How long a computation may run before its context is cancelled
- How events are logged and counted

It does NOT:
- Store data
- Track in-flight computations
- Admit or reject clients
*/
type CacheEngine struct {

	// Expiration stamps new entries and classifies existing ones.
	Expiration expiration.Policy

	// Clock is the single source of "now" for freshness, wait budgets and sweeps.
	Clock clockwork.Clock

	// QueryWait is how long a waiter blocks before falling back to stale data.
	// Zero means waiters never block.
	QueryWait time.Duration

	// ComputeTimeout bounds a single computation. Zero means unbounded.
	ComputeTimeout time.Duration

	// Metrics is how we keep track of what the cache is doing.
	Metrics types.Metrics

	// Logger receives structured events. Never nil after construction.
	Logger *zap.Logger
}

/*
NewCacheEngine creates a CacheEngine.

clock, metrics and logger may be nil; they default to the real clock,
NoopMetrics and a no-op logger so the rest of the code never nil-checks.
*/
func NewCacheEngine(
	exp expiration.Policy,
	clock clockwork.Clock,
	queryWait time.Duration,
	computeTimeout time.Duration,
	metrics types.Metrics,
	logger *zap.Logger,
) *CacheEngine {

	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CacheEngine{
		Expiration:     exp,
		Clock:          clock,
		QueryWait:      queryWait,
		ComputeTimeout: computeTimeout,
		Metrics:        metrics,
		Logger:         logger,
	}
}

// Now returns the engine's current time.
func (e *CacheEngine) Now() time.Time {
	return e.Clock.Now()
}

// Classify returns the lifecycle state of ent at the current time.
func (e *CacheEngine) Classify(ent *types.CacheEntry) types.State {
	return e.Expiration.State(ent, e.Clock.Now())
}

// Stamp builds the entry for a computation completing now.
func (e *CacheEngine) Stamp(key string, value []byte) *types.CacheEntry {
	return e.Expiration.Stamp(key, value, e.Clock.Now())
}

/*
ComputeContext derives the context a computation runs under.

The computation is detached from the cancellation of the request that
started it: the owner's client disconnecting must not fail every waiter.
Values (request IDs, loggers) are kept. ComputeTimeout, when set, is the
only thing that can cut a computation short.
*/
func (e *CacheEngine) ComputeContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(parent)
	if e.ComputeTimeout > 0 {
		return context.WithTimeout(ctx, e.ComputeTimeout)
	}
	return context.WithCancel(ctx)
}
