// Package projection implements Projection/Thresholding (spec.md §4.3):
// collapsing an edge's zero-or-more candidate displacements into exactly
// one consensus displacement per axis, and marking tiles stitchable.
//
// The per-axis median-with-tie-break is computed by inserting qualifying
// candidates into a github.com/biogo/store/llrb.Tree ordered by
// (coord, width, seq), the same ordered-insert pattern the teacher uses
// in encoding/bampair/shard_info.go for ShardInfo.byKey, then reading the
// middle element(s) back out via an in-order Do traversal -- avoiding a
// sort on every call since edges accumulate candidates incrementally
// during phase 4.2. seq is an insertion counter carried purely so
// candidates that tie on (coord, width) stay distinct nodes, mirroring
// mergeLeaf.Compare's seq fallback in cmd/bio-bam-sort/sorter/sort.go.
package projection

import (
	"github.com/biogo/store/llrb"

	"github.com/nimbus-imaging/volstitch/config"
	"github.com/nimbus-imaging/volstitch/dispgraph"
	"github.com/nimbus-imaging/volstitch/grid"
	"github.com/nimbus-imaging/volstitch/volpb"
)

// candKey orders candidate values by (coord, width) so the tree's
// in-order traversal yields values sorted primarily by coordinate and,
// among equal coordinates, by width -- the tie-break spec.md §4.3
// specifies ("break ties by lowest width"). seq disambiguates candidates
// that tie on both: without it llrb.Tree.Insert treats equal-keyed
// candKeys as the same node and silently drops all but one, the way
// mergeLeaf.Compare in cmd/bio-bam-sort/sorter/sort.go falls back to a
// seq difference once the sort key itself ties.
type candKey struct {
	coord  int
	width  int
	nccMax float64
	seq    int
}

func (k candKey) Compare(c llrb.Comparable) int {
	o := c.(candKey)
	if k.coord != o.coord {
		return k.coord - o.coord
	}
	if k.width != o.width {
		return k.width - o.width
	}
	return k.seq - o.seq
}

// Run performs phase 4.3 over every edge in the grid: for each edge,
// compute its per-axis consensus from graph's candidates and record it
// back into graph via SetConsensus, then mark every tile's stitchability.
func Run(g *grid.Grid, graph *dispgraph.Graph, opts config.Opts) {
	for _, e := range graph.Edges() {
		consensus := Consensus(graph.Candidates(e), opts.ReliabilityThreshold)
		graph.SetConsensus(e, consensus)
	}
	markStitchable(g, graph, opts.ReliabilityThreshold)
}

// Consensus collapses candidates into a single displacement, one axis at
// a time (spec.md §4.3). An axis with zero qualifying candidates is
// reported unreliable.
func Consensus(candidates []volpb.Displacement3, threshold float64) volpb.Displacement3 {
	out := volpb.Unreliable()
	for a := volpb.Axis(0); a < volpb.NumAxes; a++ {
		coord, nccMax, width, ok := medianAxis(candidates, a, threshold)
		if !ok {
			continue
		}
		out.Coord = out.Coord.Set(a, coord)
		out.NCCMax[a] = nccMax
		out.NCCWidth[a] = width
	}
	return out
}

// medianAxis computes one axis's consensus: the integer median (in the
// order of an llrb tree keyed on (coord,width,seq)) of qualifying
// candidates, reliability as their max, width as their min.
func medianAxis(candidates []volpb.Displacement3, a volpb.Axis, threshold float64) (coord int, nccMax float64, width int, ok bool) {
	tree := &llrb.Tree{}
	n := 0
	maxReliability := volpb.UnreliableNCC
	minWidth := volpb.InfWidth
	for _, c := range candidates {
		if !c.ReliableOn(a, threshold) {
			continue
		}
		tree.Insert(candKey{coord: c.Coord.Get(a), width: c.NCCWidth[a], nccMax: c.NCCMax[a], seq: n})
		n++
		if c.NCCMax[a] > maxReliability {
			maxReliability = c.NCCMax[a]
		}
		if c.NCCWidth[a] < minWidth {
			minWidth = c.NCCWidth[a]
		}
	}
	if n == 0 {
		return volpb.InvCoord, volpb.UnreliableNCC, volpb.InfWidth, false
	}

	mid := n / 2
	var ordered []candKey
	tree.Do(func(c llrb.Comparable) (done bool) {
		ordered = append(ordered, c.(candKey))
		return false
	})
	if n%2 == 1 {
		coord = ordered[mid].coord
	} else {
		// Even count: spec.md's "integer median" is taken as the lower of
		// the two middle values, keeping the consensus an exact integer
		// without introducing a .5 coordinate.
		coord = ordered[mid-1].coord
	}
	return coord, maxReliability, minWidth, true
}

// markStitchable sets each tile's stitchability: true iff some incident
// edge's consensus is reliable on all three axes (spec.md §3, §4.3).
func markStitchable(g *grid.Grid, graph *dispgraph.Graph, threshold float64) {
	for r := 0; r < g.NRows(); r++ {
		for c := 0; c < g.NCols(); c++ {
			t := g.Tile(r, c)
			stitchable := false
			for _, ie := range graph.Incident(r, c) {
				d, ok := graph.Consensus(ie.Edge)
				if !ok {
					continue
				}
				if d.ReliableOn(volpb.AxisV, threshold) && d.ReliableOn(volpb.AxisH, threshold) && d.ReliableOn(volpb.AxisD, threshold) {
					stitchable = true
					break
				}
			}
			t.SetStitchable(stitchable)
		}
	}
}
