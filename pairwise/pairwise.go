// Package pairwise implements the Pairwise Driver (spec.md §4.2): for
// every adjacent tile pair within the user's processing window, it reads
// the overlapping slabs, sub-divides them along depth into D-chunks, and
// invokes the MIP-NCC engine on each chunk, appending the result to the
// Displacement Graph.
//
// Concurrency follows
// github.com/grailbio/bio/markduplicates.MarkDuplicates.generateBAM's
// worker-pool shape: a buffered channel of work items drained by
// Opts.Parallelism goroutines, a sync.WaitGroup, and a
// github.com/grailbio/base/errors.Once accumulating the first whole-run
// fatal error while per-pair failures are logged and skipped.
package pairwise

import (
	"sync"

	"github.com/grailbio/base/errors"

	"github.com/nimbus-imaging/volstitch/config"
	"github.com/nimbus-imaging/volstitch/dispgraph"
	"github.com/nimbus-imaging/volstitch/grid"
	"github.com/nimbus-imaging/volstitch/ncc"
	"github.com/nimbus-imaging/volstitch/slabcache"
	"github.com/nimbus-imaging/volstitch/stiterr"
	"github.com/nimbus-imaging/volstitch/stitchctx"
	"github.com/nimbus-imaging/volstitch/stlog"
	"github.com/nimbus-imaging/volstitch/volpb"
)

// Stats accumulates per-pair bookkeeping across a driver run: how many
// pairs were attempted, how many candidates were produced, and which
// pairs were skipped due to a per-pair-fatal error (SPEC_FULL.md
// supplemented feature #1 -- the original silently drops invalid pairs;
// this keeps a record an operator can inspect).
type Stats struct {
	mu            sync.Mutex
	PairsAttempted int
	CandidatesMade int
	InvalidPairs   []InvalidPair
}

// InvalidPair records one pair that failed with a per-pair-fatal error.
type InvalidPair struct {
	Edge  dispgraph.Edge
	Chunk int
	Err   error
}

func (s *Stats) recordAttempt() {
	s.mu.Lock()
	s.PairsAttempted++
	s.mu.Unlock()
}

func (s *Stats) recordCandidate() {
	s.mu.Lock()
	s.CandidatesMade++
	s.mu.Unlock()
}

func (s *Stats) recordInvalid(e dispgraph.Edge, chunk int, err error) {
	s.mu.Lock()
	s.InvalidPairs = append(s.InvalidPairs, InvalidPair{Edge: e, Chunk: chunk, Err: err})
	s.mu.Unlock()
}

// workItem is one (edge, D-chunk) unit handed to a worker.
type workItem struct {
	edge       dispgraph.Edge
	chunkIndex int
	d0, d1     int // depth range [d0,d1) of this chunk, in tile-local coordinates
}

// Run drives phase 4.2 to completion: every edge in g.Edges() bounded by
// opts' processing window is correlated, D-chunk by D-chunk, and the
// resulting candidates are appended to graph. Returns Stats for the run
// and a non-nil error only for a whole-run-fatal condition.
func Run(g *grid.Grid, graph *dispgraph.Graph, cache *slabcache.Cache, cancel *stitchctx.CancelFlag, opts config.Opts) (*Stats, error) {
	stats := &Stats{}
	items := buildWorkItems(g, opts)

	itemCh := make(chan workItem, len(items))
	for _, it := range items {
		itemCh <- it
	}
	close(itemCh)

	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	once := errors.Once{}
	var wg sync.WaitGroup
	for wi := 0; wi < parallelism; wi++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				if cancel != nil && cancel.Cancelled() {
					continue
				}
				if err := processItem(g, graph, cache, item, opts, stats); err != nil {
					once.Set(err)
				}
			}
		}()
	}
	wg.Wait()
	return stats, once.Err()
}

// buildWorkItems enumerates every edge within the processing window and
// splits it into D-chunks of opts.SubvolDimD slices.
func buildWorkItems(g *grid.Grid, opts config.Opts) []workItem {
	endRow, endCol := opts.EndRow, opts.EndCol
	if endRow < 0 || endRow >= g.NRows() {
		endRow = g.NRows() - 1
	}
	if endCol < 0 || endCol >= g.NCols() {
		endCol = g.NCols() - 1
	}

	chunkDim := opts.SubvolDimD
	if chunkDim < 1 {
		chunkDim = g.NSlices()
	}

	var items []workItem
	addEdge := func(e dispgraph.Edge) {
		depth := g.NSlices()
		chunk := 0
		for d0 := 0; d0 < depth; d0 += chunkDim {
			d1 := d0 + chunkDim
			if d1 > depth {
				d1 = depth
			}
			items = append(items, workItem{edge: e, chunkIndex: chunk, d0: d0, d1: d1})
			chunk++
		}
	}

	for r := opts.StartRow; r <= endRow; r++ {
		for c := opts.StartCol; c <= endCol; c++ {
			if e := (dispgraph.Edge{Row: r, Col: c, Side: volpb.NorthSouth}); e.Row >= 0 && e.Col >= 0 {
				if r+1 <= endRow {
					addEdge(e)
				}
			}
			if e := (dispgraph.Edge{Row: r, Col: c, Side: volpb.WestEast}); e.Row >= 0 && e.Col >= 0 {
				if c+1 <= endCol {
					addEdge(e)
				}
			}
		}
	}
	return items
}

// processItem reads the overlap slabs for one (edge, D-chunk), runs the
// MIP-NCC engine, and appends a candidate to the graph. A per-pair-fatal
// stiterr.Error is logged and recorded in stats rather than propagated;
// any other error is returned to the caller as whole-run-fatal.
func processItem(g *grid.Grid, graph *dispgraph.Graph, cache *slabcache.Cache, item workItem, opts config.Opts, stats *Stats) error {
	stats.recordAttempt()

	t1 := g.Tile(item.edge.Row, item.edge.Col)
	var t2 *grid.Tile
	if item.edge.Side == volpb.NorthSouth {
		t2 = g.South(item.edge.Row, item.edge.Col)
	} else {
		t2 = g.East(item.edge.Row, item.edge.Col)
	}
	if t1 == nil || t2 == nil {
		err := stiterr.E(stiterr.InvalidInput, "pairwise: edge has no second tile")
		stats.recordInvalid(item.edge, item.chunkIndex, err)
		return nil
	}

	a, b, err := readOverlapSlabs(t1, t2, item, cache, opts, item.edge.Side)
	if err != nil {
		if se, ok := err.(*stiterr.Error); ok && se.Kind.PerPairFatal() {
			stlog.Errorf("pairwise: skipping edge %v chunk %d: %v", item.edge, item.chunkIndex, err)
			stats.recordInvalid(item.edge, item.chunkIndex, err)
			return nil
		}
		return err
	}

	initial := volpb.Coord3{}
	radius := volpb.Coord3{V: opts.SearchRadiusV, H: opts.SearchRadiusH, D: opts.SearchRadiusD}
	params := ncc.FromOpts(opts)
	d, err := ncc.Correlate(a, b, initial, radius, item.edge.Side, params)
	if err != nil {
		if se, ok := err.(*stiterr.Error); ok && se.Kind.PerPairFatal() {
			stlog.Errorf("pairwise: skipping edge %v chunk %d: %v", item.edge, item.chunkIndex, err)
			stats.recordInvalid(item.edge, item.chunkIndex, err)
			return nil
		}
		return err
	}
	d.DChunkIndex = item.chunkIndex

	graph.AddCandidate(item.edge, d)
	stats.recordCandidate()
	return nil
}

// readOverlapSlabs acquires the overlap windows for t1/t2 according to
// spec.md §4.2's side computation, consulting cache first. Slabs are
// requested for the [d0,d1) depth range of this D-chunk only.
func readOverlapSlabs(t1, t2 *grid.Tile, item workItem, cache *slabcache.Cache, opts config.Opts, side volpb.Side) (ncc.Volume, ncc.Volume, error) {
	var v1, h1s, h1e, v1e int
	var v2, h2s, h2e, v2e int

	switch side {
	case volpb.NorthSouth:
		ov := opts.OverlapV
		v1, v1e = t1.Height-ov, t1.Height
		h1s, h1e = 0, t1.Width
		v2, v2e = 0, ov
		h2s, h2e = 0, t2.Width
	default:
		oh := opts.OverlapH
		v1, v1e = 0, t1.Height
		h1s, h1e = t1.Width-oh, t1.Width
		v2, v2e = 0, t2.Height
		h2s, h2e = 0, oh
	}

	a, err := readCached(t1, cache, v1, v1e, h1s, h1e, item.d0, item.d1)
	if err != nil {
		return ncc.Volume{}, ncc.Volume{}, err
	}
	b, err := readCached(t2, cache, v2, v2e, h2s, h2e, item.d0, item.d1)
	if err != nil {
		return ncc.Volume{}, ncc.Volume{}, err
	}
	return a, b, nil
}

func readCached(t *grid.Tile, cache *slabcache.Cache, v0, v1, h0, h1, d0, d1 int) (ncc.Volume, error) {
	var data []float64
	var key uint64
	if cache != nil {
		key = slabcache.Key(t.Row, t.Col, v0, v1, h0, h1, d0, d1)
		if cached, ok := cache.Get(key); ok {
			data = cached
		}
	}
	if data == nil {
		var err error
		data, err = t.ReadSlab(v0, v1, h0, h1, d0, d1)
		if err != nil {
			return ncc.Volume{}, err
		}
		if cache != nil {
			cache.Put(key, data)
		}
	}
	return ncc.Volume{V: v1 - v0, H: h1 - h0, D: d1 - d0, Data: data}, nil
}
