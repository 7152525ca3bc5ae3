package types

// This file defines how the cache and the rate limiter report what they are doing.

/*
Metrics is an interface that defines what the cache wants to measure.
Each method represents an event in the request lifecycle. The coordinator,
the sweeper and the rate limiter call these methods whenever something happens.
*/
type Metrics interface {

	// Hit is called when a fresh entry is served without computation.
	Hit()

	// StaleServed is called when a waiter gives up and falls back to a stale entry.
	StaleServed()

	// Miss is called when a caller becomes the owner of a new computation.
	Miss()

	// Join is called when a caller attaches to a computation that is already running.
	Join()

	// Timeout is called when a waiter exhausts its wait budget.
	Timeout()

	// ComputeFailed is called when the compute callback returns an error or panics.
	ComputeFailed()

	// Expire is called for every dead entry removed by the sweeper.
	Expire()

	// Admitted is called when the rate limiter lets a call through.
	Admitted(tier Tier)

	// Rejected is called when the rate limiter denies a call.
	Rejected(tier Tier)
}

/*
NoopMetrics is a "do nothing" implementation of Metrics.

If someone does not care about metrics, the cache still works without
nil checks everywhere.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit()           {}
func (NoopMetrics) StaleServed()   {}
func (NoopMetrics) Miss()          {}
func (NoopMetrics) Join()          {}
func (NoopMetrics) Timeout()       {}
func (NoopMetrics) ComputeFailed() {}
func (NoopMetrics) Expire()        {}
func (NoopMetrics) Admitted(Tier)  {}
func (NoopMetrics) Rejected(Tier)  {}
