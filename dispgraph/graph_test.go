package dispgraph_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nimbus-imaging/volstitch/dispgraph"
	"github.com/nimbus-imaging/volstitch/volpb"
)

func TestEdgesEnumeratesGrid(t *testing.T) {
	g := dispgraph.New(2, 3)
	edges := g.Edges()
	// N-S: 1 row pair * 3 cols = 3; W-E: 2 rows * 2 col pairs = 4
	assert.Len(t, edges, 7)
}

func TestConcurrentAddCandidateDisjointEdges(t *testing.T) {
	g := dispgraph.New(4, 4)
	edges := g.Edges()
	var wg sync.WaitGroup
	for i, e := range edges {
		wg.Add(1)
		go func(e dispgraph.Edge, v int) {
			defer wg.Done()
			g.AddCandidate(e, volpb.Displacement3{Coord: volpb.Coord3{V: v}})
		}(e, i)
	}
	wg.Wait()
	for i, e := range edges {
		cs := g.Candidates(e)
		if assert.Len(t, cs, 1) {
			assert.Equal(t, i, cs[0].Coord.V)
		}
	}
}

func TestConsensusRoundTrip(t *testing.T) {
	g := dispgraph.New(2, 2)
	e := dispgraph.Edge{Row: 0, Col: 0, Side: volpb.WestEast}
	_, ok := g.Consensus(e)
	assert.False(t, ok)

	d := volpb.Displacement3{Coord: volpb.Coord3{H: 5}}
	g.SetConsensus(e, d)
	got, ok := g.Consensus(e)
	assert.True(t, ok)
	assert.Equal(t, d.Coord, got.Coord)
}

// TestIncidentAntiSymmetryAcrossGrid pins invariant 1 (spec.md §8): every
// edge has exactly two incident tiles, and they never agree on IsFirst --
// one must apply the consensus displacement as-is, the other negated, or
// a placement walk could double-apply or cancel an edge's contribution.
func TestIncidentAntiSymmetryAcrossGrid(t *testing.T) {
	g := dispgraph.New(3, 3)
	seen := map[dispgraph.Edge][]bool{}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			for _, ie := range g.Incident(r, c) {
				seen[ie.Edge] = append(seen[ie.Edge], ie.IsFirst)
			}
		}
	}
	for _, e := range g.Edges() {
		flags := seen[e]
		if assert.Len(t, flags, 2, "edge %v", e) {
			assert.NotEqual(t, flags[0], flags[1], "edge %v: both incident tiles see the same IsFirst", e)
		}
	}
}

func TestIncidentSigns(t *testing.T) {
	g := dispgraph.New(2, 2)
	inc := g.Incident(1, 1)
	// tile (1,1) is the second endpoint of its north and west edges.
	for _, ie := range inc {
		switch {
		case ie.Side == volpb.NorthSouth && ie.Row == 0:
			assert.False(t, ie.IsFirst)
		case ie.Side == volpb.WestEast && ie.Col == 0:
			assert.False(t, ie.IsFirst)
		}
	}
}
