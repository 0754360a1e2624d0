package pairwise_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-imaging/volstitch/config"
	"github.com/nimbus-imaging/volstitch/dispgraph"
	"github.com/nimbus-imaging/volstitch/grid"
	"github.com/nimbus-imaging/volstitch/pairwise"
	"github.com/nimbus-imaging/volstitch/slabcache"
	"github.com/nimbus-imaging/volstitch/storage"
	"github.com/nimbus-imaging/volstitch/volpb"
)

func syntheticTile(row, col int, dims storage.Dims, seed int64) *grid.Tile {
	r := rand.New(rand.NewSource(seed))
	data := make([]float64, dims.Height*dims.Width*dims.Depth)
	for k := range data {
		v := (k / dims.Depth) % dims.Width
		data[k] = math.Sin(float64(v)*0.2) + 0.01*r.Float64()
	}
	store := storage.NewFakeStore(dims)
	store.Put(row, col, data)
	return &grid.Tile{
		Row: row, Col: col,
		Height: dims.Height, Width: dims.Width, Depth: dims.Depth,
		BitsPerChannel: 16, Channels: 1,
		Store: store,
	}
}

func TestRunTwoTileGrid(t *testing.T) {
	dims := storage.Dims{Height: 80, Width: 80, Depth: 20}
	t1 := syntheticTile(0, 0, dims, 1)
	t2 := syntheticTile(0, 1, dims, 1) // identical content -> overlap should correlate at (0,0,0)

	g, err := grid.New(1, 2, []*grid.Tile{t1, t2})
	require.NoError(t, err)

	graph := dispgraph.New(1, 2)
	cache := slabcache.New(64)

	opts := config.DefaultOpts
	opts.OverlapH = 40
	opts.SearchRadiusV = 5
	opts.SearchRadiusH = 5
	opts.SearchRadiusD = 3
	opts.SubvolDimD = 10
	opts.StartRow, opts.EndRow = 0, 0
	opts.StartCol, opts.EndCol = 0, 1

	stats, err := pairwise.Run(g, graph, cache, nil, opts)
	require.NoError(t, err)
	assert.Greater(t, stats.PairsAttempted, 0)
	assert.Equal(t, 2, stats.PairsAttempted) // one W-E edge, 2 D-chunks of 10

	e := dispgraph.Edge{Row: 0, Col: 0, Side: volpb.WestEast}
	cands := graph.Candidates(e)
	assert.Len(t, cands, 2)
}
