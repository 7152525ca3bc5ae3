package api

import (
	"context"

	cache "github.com/krisalay/forecast-cache"
	"github.com/krisalay/forecast-cache/ratelimit"
	"github.com/krisalay/forecast-cache/types"
)

/*
Resolver defines the PUBLIC contract of the deduplicating cache.
The gateway only ever sees this interface; sharding, the in-flight
registry and expiration stay hidden behind it.
*/
type Resolver interface {

	/*
		Resolve returns the payload for key.

		BEHAVIOR:
		-------------------
		1. Fresh entry → returned immediately, compute is not called.
		2. Computation already running → wait for it (bounded by the
		   query wait), falling back to a stale entry on timeout.
		3. Otherwise → compute runs once and its result is committed.

		The returned Result tells fresh, computed, joined and stale apart.
		Errors: types.ErrComputationFailed, types.ErrQueryTimeout, or the
		caller's context error.
	*/
	Resolve(ctx context.Context, key string, compute types.ComputeFunc) (cache.Result, error)
}

/*
Admitter decides whether a client may make one more call in a tier.
A denied decision must have no side effects.
*/
type Admitter interface {
	Decide(clientID string, tier types.Tier) ratelimit.Decision
}

var (
	_ Resolver = (*cache.Coordinator)(nil)
	_ Admitter = (*ratelimit.Limiter)(nil)
)
