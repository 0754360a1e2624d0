package slabcache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nimbus-imaging/volstitch/slabcache"
)

func TestCachePutGet(t *testing.T) {
	c := slabcache.New(8)
	k := slabcache.Key(0, 0, 0, 10, 0, 10, 0, 5)
	_, ok := c.Get(k)
	assert.False(t, ok)

	c.Put(k, []float64{1, 2, 3})
	got, ok := c.Get(k)
	assert.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3}, got)
}

func TestCacheDistinctKeys(t *testing.T) {
	k1 := slabcache.Key(0, 0, 0, 10, 0, 10, 0, 5)
	k2 := slabcache.Key(0, 1, 0, 10, 0, 10, 0, 5)
	assert.NotEqual(t, k1, k2)
}

func TestCacheEviction(t *testing.T) {
	// maxPerShard is small enough that inserting many keys that happen to
	// land in the same shard forces eviction; exercise the bound without
	// depending on exact shard routing by inserting far more entries
	// than the cache's total capacity. New(4) gives maxPerShard =
	// 4/64+1 = 1, so the 64 shards hold at most 64 entries in all.
	c := slabcache.New(4)
	for i := 0; i < 1000; i++ {
		k := slabcache.Key(i, 0, 0, 1, 0, 1, 0, 1)
		c.Put(k, []float64{float64(i)})
	}
	assert.LessOrEqual(t, c.Len(), 64)
}
