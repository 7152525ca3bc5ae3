package expiration

import (
	"fmt"
	"time"

	"github.com/krisalay/forecast-cache/types"
)

/*
Fixed implements "fresh for a while, then stale, then dead" with windows
measured from the completion of the computation.

	[ComputedAt, ComputedAt+FreshFor)        fresh
	[ComputedAt+FreshFor, ComputedAt+DeleteAfter) stale
	[ComputedAt+DeleteAfter, ...)             dead

Reads never move the windows. An entry only gets younger by being recomputed.
*/
type Fixed struct {

	// FreshFor is CACHE_TIME_SECONDS.
	FreshFor time.Duration

	// DeleteAfter is DELETE_CACHE_TIME_SECONDS.
	DeleteAfter time.Duration
}

// Stamp builds the committed entry. The value slice is owned by the entry from here on.
func (f *Fixed) Stamp(key string, value []byte, now time.Time) *types.CacheEntry {
	return &types.CacheEntry{
		Key:        key,
		Value:      value,
		ComputedAt: now,
		FreshUntil: now.Add(f.FreshFor),
		ExpireAt:   now.Add(f.DeleteAfter),
	}
}

// State delegates to the timestamps baked into the entry at Stamp time.
func (f *Fixed) State(ent *types.CacheEntry, now time.Time) types.State {
	return ent.State(now)
}

// Validate enforces non-negative windows and DeleteAfter >= FreshFor.
func (f *Fixed) Validate() error {
	if f.FreshFor < 0 {
		return fmt.Errorf("%w: freshness window %s is negative", types.ErrConfigInvalid, f.FreshFor)
	}
	if f.DeleteAfter < 0 {
		return fmt.Errorf("%w: hard expiry window %s is negative", types.ErrConfigInvalid, f.DeleteAfter)
	}
	if f.DeleteAfter < f.FreshFor {
		return fmt.Errorf("%w: hard expiry %s is shorter than freshness window %s",
			types.ErrConfigInvalid, f.DeleteAfter, f.FreshFor)
	}
	return nil
}
