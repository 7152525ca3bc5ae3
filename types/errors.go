package types

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Callers branch on them with errors.Is.
var (
	// ErrComputationFailed means the compute callback returned an error or panicked.
	ErrComputationFailed = errors.New("computation failed")

	// ErrQueryTimeout means a waiter ran out of wait budget with nothing servable.
	ErrQueryTimeout = errors.New("query timeout")

	// ErrRateLimited means the client's quota for a tier is exhausted.
	ErrRateLimited = errors.New("rate limited")

	// ErrConfigInvalid means the configuration was rejected at startup.
	ErrConfigInvalid = errors.New("config invalid")
)

// ComputeError carries the callback's error to the owner and every waiter.
type ComputeError struct {
	Key string
	Err error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("%s for %q: %v", ErrComputationFailed, e.Key, e.Err)
}

// Unwrap returns the callback's own error.
func (e *ComputeError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrComputationFailed) hold.
func (e *ComputeError) Is(target error) bool {
	return target == ErrComputationFailed
}

// TimeoutError is returned to a single waiter; the owner is not affected.
type TimeoutError struct {
	Key    string
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: waited %s for %q and no stale entry is servable", ErrQueryTimeout, e.Waited, e.Key)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrQueryTimeout
}

// RateLimitError is returned before any cache or database work happens.
type RateLimitError struct {
	ClientID   string
	Tier       Tier
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: client %q exhausted %s quota, retry in %s", ErrRateLimited, e.ClientID, e.Tier, e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
