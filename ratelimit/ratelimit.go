// Package ratelimit implements per-client admission control with independent tiers.
//
// Windows are fixed and clock-aligned: the standard tier counts calls per
// wall-clock hour, the slow tier per wall-clock minute. A client can burst up
// to twice its quota across a window edge.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/krisalay/forecast-cache/config"
	"github.com/krisalay/forecast-cache/types"
)

// Quota is the admission budget for one tier.
type Quota struct {
	Tier types.Tier

	// Limit is the number of calls admitted per window. Zero admits nothing;
	// Unlimited turns counting off for the tier.
	Limit int

	// Window is the period the count resets on. Windows are aligned to the clock.
	Window time.Duration
}

// Unlimited is the Limit of a tier that admits every call without counting.
const Unlimited = types.Unlimited

// StandardQuota is N_CALLS_PER_HOUR.
func StandardQuota(perHour int) Quota {
	return Quota{Tier: types.TierStandard, Limit: perHour, Window: time.Hour}
}

// SlowQuota is N_SLOW_CALLS_PER_MINUTE.
func SlowQuota(perMinute int) Quota {
	return Quota{Tier: types.TierSlow, Limit: perMinute, Window: time.Minute}
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Tier      types.Tier
	Limit     int
	Remaining int

	// ResetAt is when the current window ends.
	ResetAt time.Time

	// RetryAfter is set on denial: how long until the next window opens.
	RetryAfter time.Duration
}

type windowKey struct {
	client string
	tier   types.Tier
}

type window struct {
	start time.Time
	count int
}

/*
Limiter counts admitted calls per (client, tier).

All counters live behind one mutex and are only mutated through Decide;
the check and the increment happen under the same lock, so two concurrent
calls can never both take the last slot.
*/
type Limiter struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	metrics types.Metrics
	quotas  map[types.Tier]Quota
	windows map[windowKey]*window
}

// New creates a limiter with zeroed counters. clock and metrics may be nil.
func New(clock clockwork.Clock, metrics types.Metrics, quotas ...Quota) (*Limiter, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}

	qs := make(map[types.Tier]Quota, len(quotas))
	for _, q := range quotas {
		if !q.Tier.Valid() {
			return nil, fmt.Errorf("%w: unknown rate limit tier %q", types.ErrConfigInvalid, q.Tier)
		}
		if q.Limit < Unlimited {
			return nil, fmt.Errorf("%w: %s quota %d is below %d (unlimited)", types.ErrConfigInvalid, q.Tier, q.Limit, Unlimited)
		}
		if q.Window <= 0 {
			return nil, fmt.Errorf("%w: %s window %s must be positive", types.ErrConfigInvalid, q.Tier, q.Window)
		}
		qs[q.Tier] = q
	}

	return &Limiter{
		clock:   clock,
		metrics: metrics,
		quotas:  qs,
		windows: make(map[windowKey]*window),
	}, nil
}

// FromConfig builds the two-tier limiter from N_CALLS_PER_HOUR and N_SLOW_CALLS_PER_MINUTE.
func FromConfig(cfg *config.Config, clock clockwork.Clock, metrics types.Metrics) (*Limiter, error) {
	return New(clock, metrics,
		StandardQuota(cfg.CallsPerHour),
		SlowQuota(cfg.SlowCallsPerMinute),
	)
}

/*
Decide checks and, if allowed, counts one call for clientID in tier.

A denied call leaves the counters untouched. Calls for a tier with no quota
configured are denied. A Limit of 0 denies every call; only Unlimited turns
counting off.
*/
func (l *Limiter) Decide(clientID string, tier types.Tier) Decision {
	q, ok := l.quotas[tier]
	if !ok {
		l.metrics.Rejected(tier)
		return Decision{Allowed: false, Tier: tier}
	}
	if q.Limit == Unlimited {
		l.metrics.Admitted(tier)
		return Decision{Allowed: true, Tier: tier, Limit: Unlimited, Remaining: -1}
	}

	now := l.clock.Now()
	start := now.Truncate(q.Window)
	reset := start.Add(q.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	key := windowKey{client: clientID, tier: tier}
	used := 0
	if w, ok := l.windows[key]; ok && w.start.Equal(start) {
		used = w.count
	}

	d := Decision{
		Tier:    tier,
		Limit:   q.Limit,
		ResetAt: reset,
	}

	if used >= q.Limit {
		d.RetryAfter = reset.Sub(now)
		l.metrics.Rejected(tier)
		return d
	}

	l.windows[key] = &window{start: start, count: used + 1}
	d.Allowed = true
	d.Remaining = q.Limit - used - 1
	l.metrics.Admitted(tier)
	return d
}

// Admit is Decide reduced to a yes/no answer.
func (l *Limiter) Admit(clientID string, tier types.Tier) bool {
	return l.Decide(clientID, tier).Allowed
}

// Check returns a *types.RateLimitError when the call is denied.
func (l *Limiter) Check(clientID string, tier types.Tier) error {
	d := l.Decide(clientID, tier)
	if d.Allowed {
		return nil
	}
	return &types.RateLimitError{ClientID: clientID, Tier: tier, RetryAfter: d.RetryAfter}
}

// Quota returns the configured quota for tier.
func (l *Limiter) Quota(tier types.Tier) (Quota, bool) {
	q, ok := l.quotas[tier]
	return q, ok
}

// Name identifies the limiter to the sweeper.
func (l *Limiter) Name() string {
	return "ratelimit"
}

// Sweep drops windows whose period ended before now. A dropped window is
// indistinguishable from a fresh one, so this only reclaims memory.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		q := l.quotas[key.tier]
		if !now.Before(w.start.Add(q.Window)) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Clients returns how many (client, tier) windows are tracked.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
