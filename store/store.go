// Package store holds committed response payloads keyed by request fingerprint.
//
// The store has no notion of freshness. It returns whatever is committed,
// stale and dead entries included; deciding what may be served is the
// coordinator's job.
package store

import "github.com/krisalay/forecast-cache/types"

// Store is a sharded fingerprint -> CacheEntry map with O(1) lookup and atomic replace.
type Store struct {
	shards   []*Shard
	selector Selector
}

// New creates a store with the given number of shards (at least one).
func New(shards int) *Store {
	if shards < 1 {
		shards = 1
	}

	s := make([]*Shard, shards)
	for i := range s {
		s[i] = newShard()
	}

	return &Store{
		shards:   s,
		selector: HashSelector{},
	}
}

// Get returns the committed entry for key. It never blocks on a computation.
func (s *Store) Get(key string) (*types.CacheEntry, bool) {
	return s.selector.Select(key, s.shards).get(key)
}

// Put creates or replaces the entry for key.
func (s *Store) Put(key string, ent *types.CacheEntry) {
	s.selector.Select(key, s.shards).put(key, ent)
}

// Delete removes the entry for key unconditionally. Deleting a missing key is a no-op.
// The sweep path uses DeleteIf so a recomputed entry is never removed.
func (s *Store) Delete(key string) {
	s.selector.Select(key, s.shards).delete(key)
}

// DeleteIf removes key only while it still maps to ent. It is the sweeper's delete.
func (s *Store) DeleteIf(key string, ent *types.CacheEntry) bool {
	return s.selector.Select(key, s.shards).deleteIf(key, ent)
}

/*
Range calls fn for every entry, shard by shard, over a snapshot of each shard.
Writes that land while Range runs may or may not be observed.
Returning false from fn stops the iteration.
*/
func (s *Store) Range(fn func(key string, ent *types.CacheEntry) bool) {
	for _, sh := range s.shards {
		for k, v := range sh.snapshot() {
			if !fn(k, v) {
				return
			}
		}
	}
}

// Len returns how many entries are stored.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		n += sh.len()
	}
	return n
}
