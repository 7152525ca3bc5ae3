package types

import "time"

// State is where an entry sits in its lifecycle relative to the clock.
type State int

const (
	// Fresh entries are served directly without computation.
	Fresh State = iota

	// Stale entries are kept only as a fallback for waiters that gave up.
	Stale

	// Dead entries must never be served. The sweeper removes them.
	Dead
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

/*
CacheEntry is one committed response payload.

Entries are immutable once they are stored. A recomputation builds a new
entry and swaps the pointer in the store, so a reader holding an old pointer
keeps seeing a complete (older) value and never a half-written one.
*/
type CacheEntry struct {
	Key   string
	Value []byte

	// ComputedAt is when the computation that produced Value completed.
	ComputedAt time.Time

	// FreshUntil = ComputedAt + freshness window.
	FreshUntil time.Time

	// ExpireAt = ComputedAt + hard expiry window. At or after this instant the
	// entry is dead.
	ExpireAt time.Time
}

// State classifies the entry at now.
func (e *CacheEntry) State(now time.Time) State {
	switch {
	case now.Before(e.FreshUntil):
		return Fresh
	case now.Before(e.ExpireAt):
		return Stale
	default:
		return Dead
	}
}

// Age is how long ago the entry was computed.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.ComputedAt)
}
