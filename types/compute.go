package types

import "context"

/*
ComputeFunc is the contract between the cache and the forecast database.

It is supplied by the gateway on every request and is only ever invoked by the
coordinator, at most once per key at a time:
 1. Coordinator finds no fresh entry for the key
 2. Coordinator claims the key and calls ComputeFunc
 3. ComputeFunc queries the database and returns the serialized payload
 4. Coordinator stores the payload and hands it to every waiter

The core never builds queries itself.
*/
type ComputeFunc func(ctx context.Context, key string) ([]byte, error)

// Tier is a rate-limit class with its own quota and window.
type Tier string

const (
	// TierStandard covers ordinary endpoints.
	TierStandard Tier = "standard"

	// TierSlow covers heavyweight endpoints such as all-GSP forecasts.
	TierSlow Tier = "slow"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierStandard || t == TierSlow
}

// Unlimited is the quota value that turns rate limiting off for a tier.
// A quota of 0 admits nothing.
const Unlimited = -1
