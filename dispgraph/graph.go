// Package dispgraph implements the displacement graph (spec.md §3, §4,
// §9): an undirected graph over adjacent tiles carrying zero or more
// candidate displacements per edge, plus the one consensus displacement
// projection/thresholding later writes. Edges are addressed by an
// index-keyed array sized 2*R*C (spec.md §9), one slot per (tile, side)
// pair, each independently lockable -- generalizing the sharded-mutex-map
// pattern of github.com/grailbio/bio/encoding/bamprovider/concurrentmap.go
// from hash-routed shards to edges that are already disjoint by
// construction.
package dispgraph

import (
	"sync"

	"github.com/nimbus-imaging/volstitch/volpb"
)

// Edge identifies one adjacency: the tile at (Row,Col) and its neighbor
// in the given Side direction (spec.md §3: N-S edge between (r,c) and
// (r+1,c); W-E edge between (r,c) and (r,c+1)).
type Edge struct {
	Row, Col int
	Side     volpb.Side
}

type edgeSlot struct {
	mu         sync.Mutex
	candidates []volpb.Displacement3
	consensus  volpb.Displacement3
	hasConsensus bool
}

// Graph is the displacement graph over an R x C tile grid. It supports
// concurrent AddCandidate calls on disjoint edges (spec.md §5's
// parallelism contract for phase 4.2); there is no shared mutable state
// between edges beyond the fixed-size backing array itself.
type Graph struct {
	rows, cols int
	slots      []edgeSlot // index: Index(row,col,side)
}

// New returns an empty Graph over an R x C grid.
func New(rows, cols int) *Graph {
	return &Graph{rows: rows, cols: cols, slots: make([]edgeSlot, 2*rows*cols)}
}

// Index maps an Edge to its slot in the 2*R*C array: N-S edges occupy the
// first R*C slots, W-E edges the second R*C (spec.md §9).
func (g *Graph) Index(e Edge) int {
	base := e.Row*g.cols + e.Col
	if e.Side == volpb.WestEast {
		base += g.rows * g.cols
	}
	return base
}

// Valid reports whether e names an edge that actually exists in the grid
// (i.e. its second endpoint is in range).
func (g *Graph) Valid(e Edge) bool {
	if e.Row < 0 || e.Row >= g.rows || e.Col < 0 || e.Col >= g.cols {
		return false
	}
	if e.Side == volpb.NorthSouth {
		return e.Row+1 < g.rows
	}
	return e.Col+1 < g.cols
}

// AddCandidate appends a candidate displacement to e's list. Safe to call
// concurrently for distinct edges, and concurrently with other
// AddCandidate calls on the same edge (spec.md §5: "The Displacement
// Graph must support concurrent append of candidates to disjoint
// edges"). The order candidates end up in is not observable to consumers
// (spec.md §5's ordering note): projection treats them as a set.
func (g *Graph) AddCandidate(e Edge, d volpb.Displacement3) {
	s := &g.slots[g.Index(e)]
	s.mu.Lock()
	s.candidates = append(s.candidates, d)
	s.mu.Unlock()
}

// Candidates returns a copy of e's candidate list. Safe to call once
// phase 4.2 has completed (single-threaded from here on, per spec.md
// §5), and safe (if momentarily racy with in-flight appends) at any time.
func (g *Graph) Candidates(e Edge) []volpb.Displacement3 {
	s := &g.slots[g.Index(e)]
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]volpb.Displacement3, len(s.candidates))
	copy(out, s.candidates)
	return out
}

// SetConsensus records e's single post-projection consensus displacement
// (spec.md §3: "Edge consensus displacement"). Called once per edge, from
// the single-threaded projection phase.
func (g *Graph) SetConsensus(e Edge, d volpb.Displacement3) {
	s := &g.slots[g.Index(e)]
	s.mu.Lock()
	s.consensus = d
	s.hasConsensus = true
	s.mu.Unlock()
}

// Consensus returns e's consensus displacement and whether one has been
// set yet.
func (g *Graph) Consensus(e Edge) (volpb.Displacement3, bool) {
	s := &g.slots[g.Index(e)]
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consensus, s.hasConsensus
}

// Edges returns every valid edge in the grid, N-S before W-E, in
// row-major order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, 2*g.rows*g.cols)
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if e := (Edge{r, c, volpb.NorthSouth}); g.Valid(e) {
				out = append(out, e)
			}
		}
	}
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if e := (Edge{r, c, volpb.WestEast}); g.Valid(e) {
				out = append(out, e)
			}
		}
	}
	return out
}

// Incident returns the (at most four) edges incident to tile (row,col),
// in a canonical order (south, east, north, west), each paired with
// whether (row,col) is the edge's "first" tile (i.e. appears as (Row,Col)
// rather than the neighbor) -- callers need this to apply the correct
// sign when consuming a consensus displacement (spec.md §4.4, §8's
// anti-symmetry property).
type IncidentEdge struct {
	Edge
	IsFirst bool
}

func (g *Graph) Incident(row, col int) []IncidentEdge {
	var out []IncidentEdge
	if e := (Edge{row, col, volpb.NorthSouth}); g.Valid(e) {
		out = append(out, IncidentEdge{e, true})
	}
	if e := (Edge{row, col, volpb.WestEast}); g.Valid(e) {
		out = append(out, IncidentEdge{e, true})
	}
	if e := (Edge{row - 1, col, volpb.NorthSouth}); g.Valid(e) {
		out = append(out, IncidentEdge{e, false})
	}
	if e := (Edge{row, col - 1, volpb.WestEast}); g.Valid(e) {
		out = append(out, IncidentEdge{e, false})
	}
	return out
}
