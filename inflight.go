package cache

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/krisalay/forecast-cache/types"
)

/*
flight is one in-progress computation for a key.

There is exactly one owner (the caller that claimed the key) and any number
of waiters. entry and err are written once, before done is closed, and only
read after done is closed.
*/
type flight struct {
	key       string
	startedAt time.Time
	done      chan struct{}

	entry *types.CacheEntry
	err   error

	waiters atomic.Int32
}

/*
registry tracks in-flight computations.

claim is a check-and-set under one lock: two callers can never both observe
"no owner" and both start a computation for the same key.
*/
type registry struct {
	mu      sync.Mutex
	flights map[string]*flight
}

func newRegistry() *registry {
	return &registry{flights: make(map[string]*flight)}
}

// claim returns the flight for key and whether the caller now owns it.
func (r *registry) claim(key string, now time.Time) (*flight, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.flights[key]; ok {
		return f, false
	}

	f := &flight{
		key:       key,
		startedAt: now,
		done:      make(chan struct{}),
	}
	r.flights[key] = f
	return f, true
}

// finish publishes the outcome, drops the flight from the registry and
// releases every waiter. The next caller for the key starts a new flight.
func (r *registry) finish(f *flight, ent *types.CacheEntry, err error) {
	f.entry = ent
	f.err = err

	r.mu.Lock()
	if r.flights[f.key] == f {
		delete(r.flights, f.key)
	}
	r.mu.Unlock()

	close(f.done)
}

func (r *registry) get(key string) (*flight, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flights[key]
	return f, ok
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flights)
}
