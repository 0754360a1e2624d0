package spool_test

import (
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-imaging/volstitch/spool"
	"github.com/nimbus-imaging/volstitch/volpb"
)

func TestShardRoundTrip(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	sh, err := spool.NewShard(filepath.Join(dir, "shard-0"))
	require.NoError(t, err)

	d1 := volpb.Displacement3{Coord: volpb.Coord3{V: 1, H: 2, D: 3}}
	d2 := volpb.Displacement3{Coord: volpb.Coord3{V: -1, H: 0, D: 0}}
	require.NoError(t, sh.Add(7, d1))
	require.NoError(t, sh.Add(7, d2))
	require.NoError(t, sh.Add(9, d1))
	require.NoError(t, sh.CloseWriter())

	require.NoError(t, sh.OpenReader())
	defer sh.CloseReader()

	got7 := sh.GetAll(7)
	assert.Len(t, got7, 2)
	assert.Equal(t, d1.Coord, got7[0].Coord)
	assert.Equal(t, d2.Coord, got7[1].Coord)

	got9 := sh.GetAll(9)
	assert.Len(t, got9, 1)
}

func TestSpoolReplay(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	sp, err := spool.Open(dir, 4)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, sp.Add(i, volpb.Displacement3{Coord: volpb.Coord3{V: i}}))
	}
	require.NoError(t, sp.CloseWriters())

	seen := map[int]int{}
	require.NoError(t, sp.Replay(func(idx int, d volpb.Displacement3) {
		seen[idx]++
		assert.Equal(t, idx, d.Coord.V)
	}))
	assert.Len(t, seen, 20)
}
