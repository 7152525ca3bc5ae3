package store

import (
	"sync"

	"github.com/krisalay/forecast-cache/types"
)

/*
Shard is a small, independent piece of the store.
Each shard has its own map and its own lock, so a write for one forecast
fingerprint never blocks readers of fingerprints that live elsewhere.

Entries are immutable pointers. Put swaps the pointer under the write lock,
which is what makes replacement atomic for readers.
*/
type Shard struct {
	mu      sync.RWMutex
	entries map[string]*types.CacheEntry
}

func newShard() *Shard {
	return &Shard{entries: make(map[string]*types.CacheEntry)}
}

func (s *Shard) get(key string) (*types.CacheEntry, bool) {
	s.mu.RLock()
	ent, ok := s.entries[key]
	s.mu.RUnlock()
	return ent, ok
}

func (s *Shard) put(key string, ent *types.CacheEntry) {
	s.mu.Lock()
	s.entries[key] = ent
	s.mu.Unlock()
}

func (s *Shard) delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// deleteIf removes key only when it still maps to ent. The sweeper uses it so
// that an entry replaced between the scan and the delete survives.
func (s *Shard) deleteIf(key string, ent *types.CacheEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.entries[key]; ok && cur == ent {
		delete(s.entries, key)
		return true
	}
	return false
}

// snapshot copies the shard's entries so callers can iterate without holding the lock.
func (s *Shard) snapshot() map[string]*types.CacheEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*types.CacheEntry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

func (s *Shard) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
