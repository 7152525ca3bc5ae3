// This file defines how cache entries age over time.

package expiration

import (
	"time"

	"github.com/krisalay/forecast-cache/types"
)

/*
Policy is the interface that all expiration rules must follow. Instead of
hard-coding the freshness and hard-expiry windows into the coordinator, the
engine holds a policy so the windows can be swapped or tuned in tests.
*/
type Policy interface {

	// Stamp builds the committed entry for a computation that completed at now.
	Stamp(key string, value []byte, now time.Time) *types.CacheEntry

	// State classifies an entry at now.
	State(*types.CacheEntry, time.Time) types.State

	// Validate rejects windows that cannot be honoured.
	Validate() error
}
