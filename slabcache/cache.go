// Package slabcache provides a bounded, sharded, content-addressed cache
// of recently-read tile slabs. Entries are keyed by tile, window and depth
// range, so a slab is served from the cache only when the same tile,
// window and depth range are requested again; each D-chunk of an overlap
// window has its own depth range and its own entry. Grounded directly on
// github.com/grailbio/bio/encoding/bamprovider/concurrentmap.go's
// sharded-mutex map keyed by seahash, generalized from a fixed shard key
// to a content fingerprint of (tile, window).
package slabcache

import (
	"sync"

	farm "github.com/dgryski/go-farm"
)

const numShards = 64

type entry struct {
	key  uint64
	data []float64
}

type shard struct {
	mu      sync.Mutex
	entries map[uint64]*entry
	order   []uint64 // insertion order, for eviction
}

// Cache is a bounded, thread-safe cache from (row,col,window) to a slab
// buffer. Multiple pairwise-driver workers may read distinct or
// overlapping windows concurrently.
type Cache struct {
	shards      [numShards]shard
	maxPerShard int
}

// New returns a Cache bounded to approximately maxEntries total, spread
// evenly across shards.
func New(maxEntries int) *Cache {
	c := &Cache{maxPerShard: maxEntries/numShards + 1}
	for i := range c.shards {
		c.shards[i].entries = make(map[uint64]*entry)
	}
	return c
}

// Key fingerprints a (row,col,window) tuple using farmhash, the same
// hash family the teacher uses to shard its kmer index
// (fusion/kmer_index.go).
func Key(row, col, v0, v1, h0, h1, d0, d1 int) uint64 {
	var buf [64]byte
	putInt(buf[0:8], row)
	putInt(buf[8:16], col)
	putInt(buf[16:24], v0)
	putInt(buf[24:32], v1)
	putInt(buf[32:40], h0)
	putInt(buf[40:48], h1)
	putInt(buf[48:56], d0)
	putInt(buf[56:64], d1)
	return farm.Hash64(buf[:])
}

func putInt(b []byte, v int) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}

// Get returns the cached slab for key, if present.
func (c *Cache) Get(key uint64) ([]float64, bool) {
	s := &c.shards[key%numShards]
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return e.data, true
}

// Put installs data under key, evicting the oldest entry in its shard if
// the shard is full.
func (c *Cache) Put(key uint64, data []float64) {
	s := &c.shards[key%numShards]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; exists {
		return
	}
	if len(s.order) >= c.maxPerShard {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
	s.entries[key] = &entry{key: key, data: data}
	s.order = append(s.order, key)
}

// Len returns the approximate total number of cached entries (spec.md's
// "no shared caches require locks during 4.3-4.4" -- this is only ever
// read back during phase 4.2, concurrently).
func (c *Cache) Len() int {
	n := 0
	for i := range c.shards {
		c.shards[i].mu.Lock()
		n += len(c.shards[i].entries)
		c.shards[i].mu.Unlock()
	}
	return n
}
