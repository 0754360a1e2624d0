// Package placement implements MST Placement (spec.md §4.4): computing
// absolute tile coordinates from the post-projection displacement graph
// by propagating outward from a chosen source tile along a per-axis
// shortest-path tree.
//
// The three per-axis passes are plain Bellman-Ford-style relaxation
// bounded at R*C iterations, matching TPAlgoMST.cpp's own
// all-edges-repeated-R*C-times relaxation loop rather than a
// priority-queue Dijkstra -- the grid's degree is at most 4, so the
// asymptotic difference never matters, and the repeated-relaxation form
// keeps the three axis passes structurally identical (spec.md §9: "avoid
// dynamic dispatch; the axis is a loop index").
package placement

import (
	"math"

	"github.com/nimbus-imaging/volstitch/config"
	"github.com/nimbus-imaging/volstitch/dispgraph"
	"github.com/nimbus-imaging/volstitch/grid"
	"github.com/nimbus-imaging/volstitch/stiterr"
	"github.com/nimbus-imaging/volstitch/stlog"
	"github.com/nimbus-imaging/volstitch/volpb"
)

type cell struct{ row, col int }

// Place runs phase 4.4 to completion: it selects a source tile, computes
// three independent shortest-path trees (one per axis) over the
// reliability-weighted grid, and writes every tile's absolute coordinate
// exactly once (spec.md §4.4's per-tile, per-axis state machine).
func Place(g *grid.Grid, graph *dispgraph.Graph, opts config.Opts) error {
	srcRow, srcCol, err := chooseSource(g, opts)
	if err != nil {
		return err
	}

	for a := volpb.Axis(0); a < volpb.NumAxes; a++ {
		dist, pred, err := relax(g, graph, a, srcRow, srcCol)
		if err != nil {
			return err
		}
		if err := assign(g, graph, a, srcRow, srcCol, dist, pred); err != nil {
			return err
		}
	}

	normalize(g)
	return nil
}

// chooseSource picks the stitchable tile nearest (0,0) by Euclidean
// distance, breaking ties lexicographically (spec.md §4.4), unless the
// caller overrides it via opts.SourceRow/SourceCol (SPEC_FULL.md
// supplemented feature #3).
func chooseSource(g *grid.Grid, opts config.Opts) (int, int, error) {
	if opts.SourceRow >= 0 && opts.SourceCol >= 0 {
		return opts.SourceRow, opts.SourceCol, nil
	}

	bestRow, bestCol := -1, -1
	bestDist := math.Inf(1)
	for r := 0; r < g.NRows(); r++ {
		for c := 0; c < g.NCols(); c++ {
			t := g.Tile(r, c)
			if !t.Stitchable() {
				continue
			}
			dist := math.Hypot(float64(r), float64(c))
			if dist < bestDist || (dist == bestDist && (cell{r, c}).less(cell{bestRow, bestCol})) {
				bestDist, bestRow, bestCol = dist, r, c
			}
		}
	}
	if bestRow < 0 {
		return 0, 0, stiterr.E(stiterr.NoStitchableSource, "placement: no stitchable tile in grid")
	}
	return bestRow, bestCol, nil
}

func (c cell) less(o cell) bool {
	if c.row != o.row {
		return c.row < o.row
	}
	return c.col < o.col
}

// relax computes single-source shortest paths on axis a's
// reliability-weighted grid via R*C rounds of edge relaxation.
func relax(g *grid.Grid, graph *dispgraph.Graph, a volpb.Axis, srcRow, srcCol int) ([][]float64, [][]cell, error) {
	rows, cols := g.NRows(), g.NCols()
	dist := make([][]float64, rows)
	pred := make([][]cell, rows)
	for r := range dist {
		dist[r] = make([]float64, cols)
		pred[r] = make([]cell, cols)
		for c := range dist[r] {
			dist[r][c] = math.Inf(1)
			pred[r][c] = cell{-1, -1}
		}
	}
	dist[srcRow][srcCol] = 0

	// usedFallback tracks whether any edge on this axis ever fell back to
	// volpb.UnreliableWeight -- spec.md §4.4's S_UNRELIABLE_WEIGHT sentinel,
	// substituted whenever an edge has no consensus or a non-positive
	// axis-a reliability so relaxation still terminates on a grid that's
	// disconnected with respect to axis a's *reliable* edges alone
	// (Scenario E: an axis can stay reliability-disconnected even though
	// the underlying tile grid is fully connected).
	usedFallback := false
	relaxEdge := func(r1, c1, r2, c2 int, e dispgraph.Edge) {
		d, ok := graph.Consensus(e)
		weight := volpb.UnreliableWeight
		if ok && d.NCCMax[a] > 0 {
			weight = 1.0 / d.NCCMax[a]
		} else {
			usedFallback = true
		}
		if dist[r1][c1]+weight < dist[r2][c2] {
			dist[r2][c2] = dist[r1][c1] + weight
			pred[r2][c2] = cell{r1, c1}
		}
	}

	for pass := 0; pass < rows*cols; pass++ {
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				if e := (dispgraph.Edge{Row: r, Col: c, Side: volpb.NorthSouth}); graph.Valid(e) {
					relaxEdge(r, c, r+1, c, e)
					relaxEdge(r+1, c, r, c, e)
				}
				if e := (dispgraph.Edge{Row: r, Col: c, Side: volpb.WestEast}); graph.Valid(e) {
					relaxEdge(r, c, r, c+1, e)
					relaxEdge(r, c+1, r, c, e)
				}
			}
		}
	}
	if usedFallback {
		stlog.Warningf("placement: axis %v used S_UNRELIABLE_WEIGHT (%.0f) fallback for at least one edge", a, volpb.UnreliableWeight)
	}
	return dist, pred, nil
}

// assign walks each tile's predecessor chain back to the source,
// accumulating the axis-a signed displacement, then writes the tile's
// absolute coordinate exactly once.
func assign(g *grid.Grid, graph *dispgraph.Graph, a volpb.Axis, srcRow, srcCol int, dist [][]float64, pred [][]cell) error {
	g.Tile(srcRow, srcCol).AssignAbsolute(a, 0)

	for r := 0; r < g.NRows(); r++ {
		for c := 0; c < g.NCols(); c++ {
			if r == srcRow && c == srcCol {
				continue
			}
			if math.IsInf(dist[r][c], 1) {
				return stiterr.E(stiterr.PredecessorGraphCorrupt, "placement: tile (%d,%d) unreachable from source on axis %v", r, c, a)
			}

			total := 0
			v := cell{r, c}
			seen := map[cell]bool{v: true}
			for v != (cell{srcRow, srcCol}) {
				u := pred[v.row][v.col]
				if u.row < 0 || u.col < 0 {
					return stiterr.E(stiterr.PredecessorGraphCorrupt, "placement: broken predecessor chain at (%d,%d)", v.row, v.col)
				}
				delta, err := edgeDelta(graph, a, u, v)
				if err != nil {
					return err
				}
				total += delta

				childTile, parentTile := g.Tile(v.row, v.col), g.Tile(u.row, u.col)
				if childTile.Stitchable() && !parentTile.Stitchable() {
					stlog.Warningf("placement: axis %v path to (%d,%d) routes through non-stitchable tile (%d,%d)", a, r, c, u.row, u.col)
				}

				v = u
				if seen[v] {
					return stiterr.E(stiterr.PredecessorGraphCorrupt, "placement: predecessor cycle detected at (%d,%d)", v.row, v.col)
				}
				seen[v] = true
			}
			g.Tile(r, c).AssignAbsolute(a, total)
		}
	}
	return nil
}

// edgeDelta returns u's (the predecessor's) contribution to v's
// accumulated absolute coordinate on axis a: the edge's consensus
// displacement if u is the edge's "first" tile (predecessor precedes
// child in grid order, matching the stored edge direction), or its
// negation if u is "second" (spec.md §4.4's signed-accumulation rule,
// pinned against TPAlgoMST.cpp's predecessor walk per DESIGN.md Open
// Question 3).
func edgeDelta(graph *dispgraph.Graph, a volpb.Axis, u, v cell) (int, error) {
	var e dispgraph.Edge
	var uIsFirst bool
	switch {
	case u.row == v.row-1 && u.col == v.col:
		e = dispgraph.Edge{Row: u.row, Col: u.col, Side: volpb.NorthSouth}
		uIsFirst = true
	case u.row == v.row+1 && u.col == v.col:
		e = dispgraph.Edge{Row: v.row, Col: v.col, Side: volpb.NorthSouth}
		uIsFirst = false
	case u.row == v.row && u.col == v.col-1:
		e = dispgraph.Edge{Row: u.row, Col: u.col, Side: volpb.WestEast}
		uIsFirst = true
	case u.row == v.row && u.col == v.col+1:
		e = dispgraph.Edge{Row: v.row, Col: v.col, Side: volpb.WestEast}
		uIsFirst = false
	default:
		return 0, stiterr.E(stiterr.PredecessorGraphCorrupt, "placement: (%d,%d) and (%d,%d) are not grid-adjacent", u.row, u.col, v.row, v.col)
	}

	d, ok := graph.Consensus(e)
	if !ok {
		return 0, stiterr.E(stiterr.PredecessorGraphCorrupt, "placement: edge %v has no consensus", e)
	}
	delta := d.Coord.Get(a)
	if !uIsFirst {
		delta = -delta
	}
	return delta, nil
}

// normalize subtracts tile (0,0)'s absolute coordinate from every tile,
// so (0,0) sits at the origin regardless of where the source tile was
// (spec.md §4.4).
func normalize(g *grid.Grid) {
	origin := g.Tile(0, 0).Absolute()
	if origin == (volpb.Coord3{}) {
		return
	}
	delta := volpb.Coord3{}.Sub(origin)
	for r := 0; r < g.NRows(); r++ {
		for c := 0; c < g.NCols(); c++ {
			g.Tile(r, c).Translate(delta)
		}
	}
}
