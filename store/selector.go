package store

import "hash/fnv"

/*
This file decides HOW a fingerprint is assigned to a shard.
Forecast fingerprints are hex digests, so a cheap hash spreads them evenly
and no shard becomes the one every dashboard refresh contends on.
*/

// Selector decides which shard holds a given key.
type Selector interface {
	Select(string, []*Shard) *Shard
}

// HashSelector picks a shard by FNV-1a hash of the key.
type HashSelector struct{}

// hash converts a string key into a number. FNV is a fast, non-cryptographic hash.
func hash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// Select chooses the shard for a given key.
func (HashSelector) Select(key string, shards []*Shard) *Shard {
	return shards[hash(key)%uint32(len(shards))]
}
