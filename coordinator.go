package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/krisalay/forecast-cache/engine"
	"github.com/krisalay/forecast-cache/store"
	"github.com/krisalay/forecast-cache/types"
)

// Status tells the caller where a resolved value came from.
type Status int

const (
	// StatusFresh means a fresh committed entry was served without computation.
	StatusFresh Status = iota

	// StatusComputed means this caller owned the computation that produced the value.
	StatusComputed

	// StatusJoined means this caller waited on another caller's computation.
	StatusJoined

	// StatusStale means the wait budget ran out and a stale entry was served instead.
	StatusStale
)

func (s Status) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusComputed:
		return "computed"
	case StatusJoined:
		return "joined"
	case StatusStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Result is a resolved payload plus enough metadata for the caller to tell
// fresh data from stale data.
type Result struct {
	Value      []byte
	Status     Status
	ComputedAt time.Time
}

func fromEntry(ent *types.CacheEntry, status Status) Result {
	return Result{
		Value:      ent.Value,
		Status:     status,
		ComputedAt: ent.ComputedAt,
	}
}

/*
Coordinator is the main cache implementation.
This struct is the orchestrator that connects:
- the sharded store of committed entries
- the registry of in-flight computations
- the engine (expiration, clock, wait budget, metrics, logging)

It is the only thing that touches the store and the registry. The gateway
holds a *Coordinator and calls Resolve; the sweeper calls Sweep.
*/
type Coordinator struct {
	store   *store.Store
	flights *registry
	engine  *engine.CacheEngine
}

// NewCoordinator creates a coordinator with an empty store and no computations in flight.
func NewCoordinator(shards int, engine *engine.CacheEngine) *Coordinator {
	return &Coordinator{
		store:   store.New(shards),
		flights: newRegistry(),
		engine:  engine,
	}
}

/*
Resolve returns the payload for key, computing it at most once across all
concurrent callers.

 1. Fresh entry → served immediately.
 2. Someone else is computing → wait up to QueryWait for their result, then
    fall back to a stale (not dead) entry or fail with ErrQueryTimeout.
 3. Nobody is computing → this caller owns a new computation. On success the
    entry is replaced; on failure the store is left untouched.

Cancelling ctx only stops this caller from waiting. A running computation is
never cancelled by its callers.
*/
func (c *Coordinator) Resolve(ctx context.Context, key string, compute types.ComputeFunc) (Result, error) {
	if ent, ok := c.store.Get(key); ok && c.engine.Classify(ent) == types.Fresh {
		c.engine.Metrics.Hit()
		c.engine.Logger.Debug("serving fresh entry", zap.String("key", key))
		return fromEntry(ent, StatusFresh), nil
	}

	f, owner := c.flights.claim(key, c.engine.Now())
	if !owner {
		return c.join(ctx, f)
	}

	// Another owner may have committed between our store read and the claim.
	if ent, ok := c.store.Get(key); ok && c.engine.Classify(ent) == types.Fresh {
		c.flights.finish(f, ent, nil)
		c.engine.Metrics.Hit()
		return fromEntry(ent, StatusFresh), nil
	}

	c.engine.Metrics.Miss()
	go c.run(ctx, f, compute)

	select {
	case <-f.done:
		if f.err != nil {
			return Result{}, f.err
		}
		return fromEntry(f.entry, StatusComputed), nil
	case <-ctx.Done():
		c.engine.Logger.Debug("owner stopped waiting, computation continues",
			zap.String("key", key), zap.Error(ctx.Err()))
		return Result{}, ctx.Err()
	}
}

// run executes compute for the flight and publishes the outcome.
func (c *Coordinator) run(ctx context.Context, f *flight, compute types.ComputeFunc) {
	cctx, cancel := c.engine.ComputeContext(ctx)
	defer cancel()

	value, err := call(cctx, f.key, compute)
	took := c.engine.Now().Sub(f.startedAt)

	if err != nil {
		c.engine.Metrics.ComputeFailed()
		c.engine.Logger.Warn("computation failed, keeping previous entry",
			zap.String("key", f.key),
			zap.Duration("took", took),
			zap.Int32("waiters", f.waiters.Load()),
			zap.Error(err),
		)
		c.flights.finish(f, nil, &types.ComputeError{Key: f.key, Err: err})
		return
	}

	ent := c.engine.Stamp(f.key, value)
	c.store.Put(f.key, ent)

	c.engine.Logger.Info("computed entry",
		zap.String("key", f.key),
		zap.Duration("took", took),
		zap.Int32("waiters", f.waiters.Load()),
		zap.Int("bytes", len(value)),
	)
	c.flights.finish(f, ent, nil)
}

// call runs compute and turns a panic into an error so waiters are always released.
func call(ctx context.Context, key string, compute types.ComputeFunc) (value []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compute panicked: %v", r)
		}
	}()
	return compute(ctx, key)
}

// join makes the caller a waiter on f.
func (c *Coordinator) join(ctx context.Context, f *flight) (Result, error) {
	f.waiters.Inc()
	c.engine.Metrics.Join()
	c.engine.Logger.Debug("joining in-flight computation",
		zap.String("key", f.key), zap.Time("started_at", f.startedAt))

	select {
	case <-f.done:
		return joined(f)
	default:
	}

	wait := c.engine.QueryWait
	if wait <= 0 {
		return c.fallback(f.key, 0)
	}

	timer := c.engine.Clock.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-f.done:
		return joined(f)
	case <-timer.Chan():
		return c.fallback(f.key, wait)
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func joined(f *flight) (Result, error) {
	if f.err != nil {
		return Result{}, f.err
	}
	return fromEntry(f.entry, StatusJoined), nil
}

// fallback serves whatever non-dead entry is committed, or reports a timeout.
func (c *Coordinator) fallback(key string, waited time.Duration) (Result, error) {
	c.engine.Metrics.Timeout()

	if ent, ok := c.store.Get(key); ok {
		switch c.engine.Classify(ent) {
		case types.Fresh:
			c.engine.Metrics.Hit()
			return fromEntry(ent, StatusFresh), nil
		case types.Stale:
			c.engine.Metrics.StaleServed()
			c.engine.Logger.Info("wait budget exhausted, serving stale entry",
				zap.String("key", key),
				zap.Duration("waited", waited),
				zap.Duration("age", ent.Age(c.engine.Now())),
			)
			return fromEntry(ent, StatusStale), nil
		}
	}

	c.engine.Logger.Warn("wait budget exhausted, nothing servable",
		zap.String("key", key), zap.Duration("waited", waited))
	return Result{}, &types.TimeoutError{Key: key, Waited: waited}
}

// Name identifies the coordinator to the sweeper.
func (c *Coordinator) Name() string {
	return "cache"
}

/*
Sweep deletes every entry that is dead at now and returns how many were removed.
An entry replaced by a recomputation while the sweep runs is left alone.
*/
func (c *Coordinator) Sweep(now time.Time) int {
	removed := 0
	c.store.Range(func(key string, ent *types.CacheEntry) bool {
		if c.engine.Expiration.State(ent, now) == types.Dead && c.store.DeleteIf(key, ent) {
			c.engine.Metrics.Expire()
			removed++
		}
		return true
	})
	return removed
}

// Lookup returns the committed entry for key, whatever its state.
func (c *Coordinator) Lookup(key string) (*types.CacheEntry, bool) {
	return c.store.Get(key)
}

// Len returns the number of committed entries.
func (c *Coordinator) Len() int {
	return c.store.Len()
}

// InFlight returns the number of computations currently running.
func (c *Coordinator) InFlight() int {
	return c.flights.len()
}

// Waiters returns how many callers joined the computation running for key.
func (c *Coordinator) Waiters(key string) int {
	f, ok := c.flights.get(key)
	if !ok {
		return 0
	}
	return int(f.waiters.Load())
}
