// volstitch estimates pairwise tile displacements across a 3-D microscopy
// acquisition grid (MIP-NCC, spec.md §4.1-§4.2), reconciles them into a
// per-edge consensus (§4.3), and places every tile's absolute coordinate
// via per-axis MST propagation (§4.4).
//
// This mirrors cmd/bio-fusion/main.go's own shape: a flat set of
// flag.*Var-bound options, a grail.Init() bootstrap, and a sequential
// phase driver that fails the whole run at log.Fatalf boundaries rather
// than deep inside the algorithmic core.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"

	"github.com/nimbus-imaging/volstitch/config"
	"github.com/nimbus-imaging/volstitch/dedup"
	"github.com/nimbus-imaging/volstitch/dispgraph"
	"github.com/nimbus-imaging/volstitch/grid"
	"github.com/nimbus-imaging/volstitch/pairwise"
	"github.com/nimbus-imaging/volstitch/placement"
	"github.com/nimbus-imaging/volstitch/projection"
	"github.com/nimbus-imaging/volstitch/recorder"
	"github.com/nimbus-imaging/volstitch/slabcache"
	"github.com/nimbus-imaging/volstitch/spool"
	"github.com/nimbus-imaging/volstitch/stitchctx"
	"github.com/nimbus-imaging/volstitch/storage"
	"github.com/nimbus-imaging/volstitch/volpb"
)

// gridFlags collects the parameters needed to stand up the grid itself --
// an external collaborator's concern in spec.md (image-format readers,
// project-file parsing), reduced here to the minimum a CLI driver needs:
// a uniform regular grid of tiles backed either by a local directory of
// raw planes or by an S3 prefix.
type gridFlags struct {
	rows, cols               int
	height, width, depth     int
	bitsPerChannel, channels int
	stepV, stepH             int
	localDir                 string
	s3Bucket, s3Prefix       string
	outputXMLPath            string
}

func usage() {
	fmt.Fprintf(os.Stderr, `volstitch: pairwise displacement estimation and MST tile placement
for a 3-D microscopy acquisition grid.

Usage: volstitch -rows=R -cols=C -height=H -width=W -depth=D [options]

`)
	flag.PrintDefaults()
}

func buildGrid(gf gridFlags) (*grid.Grid, error) {
	dims := storage.Dims{Height: gf.height, Width: gf.width, Depth: gf.depth}

	var newStore func(row, col int) (storage.TileStore, error)
	switch {
	case gf.s3Bucket != "":
		newStore = func(row, col int) (storage.TileStore, error) {
			return storage.NewS3Store(gf.s3Bucket, gf.s3Prefix, dims)
		}
	default:
		newStore = func(row, col int) (storage.TileStore, error) {
			return storage.NewLocalStore(gf.localDir, dims), nil
		}
	}

	tiles := make([]*grid.Tile, 0, gf.rows*gf.cols)
	for r := 0; r < gf.rows; r++ {
		for c := 0; c < gf.cols; c++ {
			store, err := newStore(r, c)
			if err != nil {
				return nil, err
			}
			tiles = append(tiles, &grid.Tile{
				Row: r, Col: c,
				Nominal:        nominalOrigin(r, c, gf),
				Height:         gf.height,
				Width:          gf.width,
				Depth:          gf.depth,
				BitsPerChannel: gf.bitsPerChannel,
				Channels:       gf.channels,
				Store:          store,
			})
		}
	}
	return grid.New(gf.rows, gf.cols, tiles)
}

func nominalOrigin(row, col int, gf gridFlags) volpb.Coord3 {
	return volpb.Coord3{V: row * gf.stepV, H: col * gf.stepH}
}

func main() {
	flag.Usage = usage

	opts := config.DefaultOpts
	gf := gridFlags{}

	flag.IntVar(&gf.rows, "rows", 0, "Number of rows in the tile grid.")
	flag.IntVar(&gf.cols, "cols", 0, "Number of columns in the tile grid.")
	flag.IntVar(&gf.height, "height", 0, "Per-tile height (V dimension), in voxels.")
	flag.IntVar(&gf.width, "width", 0, "Per-tile width (H dimension), in voxels.")
	flag.IntVar(&gf.depth, "depth", 0, "Per-tile depth (D dimension), in voxels.")
	flag.IntVar(&gf.bitsPerChannel, "bits-per-channel", 16, "Bit depth of the source images.")
	flag.IntVar(&gf.channels, "channels", 1, "Number of channels in the source images.")
	flag.IntVar(&gf.stepV, "step-v", 0, "Nominal stage step between adjacent rows, in voxels (default: height - overlap-v).")
	flag.IntVar(&gf.stepH, "step-h", 0, "Nominal stage step between adjacent columns, in voxels (default: width - overlap-h).")
	flag.StringVar(&gf.localDir, "local-dir", "", "Directory of row_col.raw tile files (mutually exclusive with -s3-bucket).")
	flag.StringVar(&gf.s3Bucket, "s3-bucket", "", "S3 bucket holding tile objects (mutually exclusive with -local-dir).")
	flag.StringVar(&gf.s3Prefix, "s3-prefix", "", "Key prefix within -s3-bucket.")
	flag.StringVar(&gf.outputXMLPath, "output-xml", "", "Path to write the project XML (candidates, consensus, placement). If empty, results are discarded.")

	flag.IntVar(&opts.OverlapV, "overlap-v", opts.OverlapV, "Nominal tile overlap on the V axis, in voxels.")
	flag.IntVar(&opts.OverlapH, "overlap-h", opts.OverlapH, "Nominal tile overlap on the H axis, in voxels.")
	flag.IntVar(&opts.SearchRadiusV, "search-radius-v", opts.SearchRadiusV, "Half-range of the V-axis offset search, in voxels.")
	flag.IntVar(&opts.SearchRadiusH, "search-radius-h", opts.SearchRadiusH, "Half-range of the H-axis offset search, in voxels.")
	flag.IntVar(&opts.SearchRadiusD, "search-radius-d", opts.SearchRadiusD, "Half-range of the D-axis offset search, in voxels.")
	flag.IntVar(&opts.SubvolDimD, "subvol-dim-d", opts.SubvolDimD, "Depth-slices per D-chunk in the pairwise driver.")
	flag.Float64Var(&opts.ReliabilityThreshold, "reliability-threshold", opts.ReliabilityThreshold, "Minimum per-axis NCC peak for a candidate to be admissible.")
	flag.IntVar(&opts.StartRow, "start-row", opts.StartRow, "First row to process.")
	flag.IntVar(&opts.EndRow, "end-row", opts.EndRow, "Last row to process (-1: last row).")
	flag.IntVar(&opts.StartCol, "start-col", opts.StartCol, "First column to process.")
	flag.IntVar(&opts.EndCol, "end-col", opts.EndCol, "Last column to process (-1: last column).")
	flag.BoolVar(&opts.Enhance, "enhance", opts.Enhance, "Enable the piecewise-linear contrast remap before correlation. No remap breakpoints are configurable, so the remap leaves the data unchanged.")
	flag.IntVar(&opts.MaxIter, "max-iter", opts.MaxIter, "Maximum number of correlation passes (first pass plus retries) in the MIP-NCC engine.")
	flag.Float64Var(&opts.MaxThr, "max-thr", opts.MaxThr, "Minimum accepted NCC peak value; lower peaks are reported unreliable.")
	flag.Float64Var(&opts.WidthThr, "width-thr", opts.WidthThr, "Peak-width fractional threshold.")
	flag.IntVar(&opts.WRangeThrV, "wrange-thr-v", opts.WRangeThrV, "Peak width on the V axis at or above which the width is reported infinite (unreliable).")
	flag.IntVar(&opts.WRangeThrH, "wrange-thr-h", opts.WRangeThrH, "Peak width on the H axis at or above which the width is reported infinite (unreliable).")
	flag.IntVar(&opts.WRangeThrD, "wrange-thr-d", opts.WRangeThrD, "Peak width on the D axis at or above which the width is reported infinite (unreliable).")
	flag.IntVar(&opts.MinPoints, "min-points", opts.MinPoints, "Minimum number of samples in a peak's width region for a reliable NCC result.")
	flag.IntVar(&opts.MinDimNCCSrc, "min-dim-ncc-src", opts.MinDimNCCSrc, "Minimum source-MIP dimension to attempt NCC.")
	flag.IntVar(&opts.MinDimNCCMap, "min-dim-ncc-map", opts.MinDimNCCMap, "Minimum NCC-map dimension to search for a peak.")
	flag.IntVar(&opts.Parallelism, "parallelism", opts.Parallelism, "Number of concurrent pairwise-driver workers.")
	flag.IntVar(&opts.SourceRow, "source-row", opts.SourceRow, "Override MST source tile row (-1: auto-select).")
	flag.IntVar(&opts.SourceCol, "source-col", opts.SourceCol, "Override MST source tile column (-1: auto-select).")
	flag.BoolVar(&opts.CacheSlabs, "cache-slabs", opts.CacheSlabs, "Cache read overlap slabs, keyed by tile, window and depth range.")
	flag.IntVar(&opts.SlabCacheEntries, "slab-cache-entries", opts.SlabCacheEntries, "Bound on the slab cache's entry count.")
	flag.StringVar(&opts.SpoolDir, "spool-dir", opts.SpoolDir, "If set, spool per-edge candidates to disk under this directory instead of keeping them only in memory.")

	cleanup := grail.Init()
	defer cleanup()

	if gf.rows <= 0 || gf.cols <= 0 || gf.height <= 0 || gf.width <= 0 || gf.depth <= 0 {
		log.Fatal("volstitch: -rows, -cols, -height, -width, -depth are required and must be positive")
	}
	if (gf.localDir == "") == (gf.s3Bucket == "") {
		log.Fatal("volstitch: exactly one of -local-dir or -s3-bucket must be set")
	}
	if gf.stepV == 0 {
		gf.stepV = gf.height - opts.OverlapV
	}
	if gf.stepH == 0 {
		gf.stepH = gf.width - opts.OverlapH
	}

	g, err := buildGrid(gf)
	if err != nil {
		log.Fatalf("volstitch: building grid: %v", err)
	}

	var rec recorder.ProjectRecorder = recorder.Nop{}
	if gf.outputXMLPath != "" {
		rec = recorder.NewXMLProject(gf.outputXMLPath)
	}

	graph := dispgraph.New(g.NRows(), g.NCols())
	cancel := &stitchctx.CancelFlag{}

	runPipeline(g, graph, rec, cancel, opts)

	if err := rec.Close(); err != nil {
		log.Fatalf("volstitch: writing project xml: %v", err)
	}
	log.Printf("All done")
}

// runPipeline runs phases C4 (pairwise), C5 (projection), C6 (placement)
// in sequence, fatal-aborting the whole run on a whole-run-fatal error and
// otherwise logging per-pair failures that pairwise.Run has already
// downgraded and recorded in its Stats.
func runPipeline(g *grid.Grid, graph *dispgraph.Graph, rec recorder.ProjectRecorder, cancel *stitchctx.CancelFlag, opts config.Opts) {
	cache := newSlabCache(opts)

	// When spooling is enabled, pairwise.Run's fresh candidates land in a
	// scratch graph first; mergeSpooled then writes them to the spool,
	// replays it, and adds the deduplicated result to the real graph.
	pairwiseGraph := graph
	if opts.SpoolDir != "" {
		pairwiseGraph = dispgraph.New(g.NRows(), g.NCols())
	}

	stats, err := pairwise.Run(g, pairwiseGraph, cache, cancel, opts)
	if err != nil {
		log.Fatalf("volstitch: pairwise displacement estimation: %v", err)
	}
	log.Printf("pairwise: %d pairs attempted, %d candidates produced, %d invalid pairs skipped",
		stats.PairsAttempted, stats.CandidatesMade, len(stats.InvalidPairs))
	for _, inv := range stats.InvalidPairs {
		log.Error.Printf("pairwise: edge %v chunk %d: %v", inv.Edge, inv.Chunk, inv.Err)
	}

	if opts.SpoolDir != "" {
		mergeSpooled(graph, pairwiseGraph, opts)
	}

	for _, e := range graph.Edges() {
		if err := rec.RecordCandidates(e, graph.Candidates(e)); err != nil {
			log.Fatalf("volstitch: recording candidates for edge %v: %v", e, err)
		}
	}

	projection.Run(g, graph, opts)

	for _, e := range graph.Edges() {
		consensus, ok := graph.Consensus(e)
		if !ok {
			continue
		}
		if err := rec.RecordConsensus(e, consensus); err != nil {
			log.Fatalf("volstitch: recording consensus for edge %v: %v", e, err)
		}
	}

	if err := placement.Place(g, graph, opts); err != nil {
		log.Fatalf("volstitch: MST placement: %v", err)
	}

	for r := 0; r < g.NRows(); r++ {
		for c := 0; c < g.NCols(); c++ {
			t := g.Tile(r, c)
			if err := rec.RecordPlacement(r, c, t.Absolute(), t.Stitchable()); err != nil {
				log.Fatalf("volstitch: recording placement for tile (%d,%d): %v", r, c, err)
			}
		}
	}
}

// mergeSpooled writes fresh's candidates (this run's output) to the spool
// directory, replays the spool, deduplicates the two sets, and adds the
// result to graph -- the real graph that projection and placement
// operate on. spool.Open creates the shard files anew (truncating any
// left by an earlier run), so the replay returns only this run's
// candidates, each of which dedup.Merge drops as a duplicate of its fresh
// copy; candidates spooled by an earlier run are not recovered.
func mergeSpooled(graph *dispgraph.Graph, fresh *dispgraph.Graph, opts config.Opts) {
	sp, err := spool.Open(opts.SpoolDir, opts.Parallelism)
	if err != nil {
		log.Fatalf("volstitch: opening spool dir %s: %v", opts.SpoolDir, err)
	}

	freshByEdge := map[dispgraph.Edge][]volpb.Displacement3{}
	for _, e := range fresh.Edges() {
		cands := fresh.Candidates(e)
		freshByEdge[e] = cands
		for _, d := range cands {
			if err := sp.AddEdge(fresh, e, d); err != nil {
				log.Fatalf("volstitch: spooling edge %v: %v", e, err)
			}
		}
	}
	if err := sp.CloseWriters(); err != nil {
		log.Fatalf("volstitch: closing spool writers: %v", err)
	}

	byIndex := map[int]dispgraph.Edge{}
	for _, e := range fresh.Edges() {
		byIndex[fresh.Index(e)] = e
	}
	spooledByEdge := map[dispgraph.Edge][]volpb.Displacement3{}
	if err := sp.Replay(func(idx int, d volpb.Displacement3) {
		if e, ok := byIndex[idx]; ok {
			spooledByEdge[e] = append(spooledByEdge[e], d)
		}
	}); err != nil {
		log.Fatalf("volstitch: replaying spool dir %s: %v", opts.SpoolDir, err)
	}

	dedup.Merge(graph, freshByEdge, spooledByEdge)
	log.Printf("volstitch: merged spooled candidates from %s", opts.SpoolDir)
}

func newSlabCache(opts config.Opts) *slabcache.Cache {
	if !opts.CacheSlabs {
		return nil
	}
	return slabcache.New(opts.SlabCacheEntries)
}
