// Package config collects every tunable parameter named in spec.md §6
// into a single Opts struct plus package-level defaults, in the style of
// github.com/grailbio/bio/fusion's Opts/DefaultOpts: a plain struct, no
// config-file loader, wired directly to flag.*Var calls in cmd/volstitch.
package config

// Opts holds every tunable parameter of the stitching pipeline.
type Opts struct {
	// Grid geometry and windowing (spec.md §3, §6).
	OverlapV, OverlapH int
	// SearchRadiusV/H/D are the per-axis half-ranges of offset search
	// around the nominal overlap (spec.md §4.1, §6).
	SearchRadiusV, SearchRadiusH, SearchRadiusD int
	// SubvolDimD is the number of depth slices per D-chunk in the
	// pairwise driver (spec.md §4.2).
	SubvolDimD int
	// ReliabilityThreshold is the minimum per-axis NCC peak for a
	// candidate to be admissible in projection/thresholding; it also
	// defines stitchability (spec.md §4.3).
	ReliabilityThreshold float64
	// StartRow, EndRow, StartCol, EndCol bound the processing window
	// within the grid (spec.md §6). EndRow/EndCol of -1 means "to the
	// last row/column".
	StartRow, EndRow, StartCol, EndCol int

	// MIP-NCC engine parameters (spec.md §4.1).
	Enhance      bool
	MaxIter      int
	MaxThr       float64
	WidthThr     float64
	WRangeThrV   int
	WRangeThrH   int
	WRangeThrD   int
	MinPoints    int
	MinDimNCCSrc int
	MinDimNCCMap int

	// Parallelism is the number of pairwise-driver workers (spec.md §5).
	Parallelism int

	// SourceRow/SourceCol override MST auto-selection of the source tile
	// (spec.md §4.4 default: the stitchable tile nearest (0,0)). -1 means
	// "auto-select". Supplemented feature, see SPEC_FULL.md.
	SourceRow, SourceCol int

	// CacheSlabs enables slabcache's bounded content-addressed cache of
	// recently read overlap windows.
	CacheSlabs bool
	// SlabCacheEntries bounds slabcache's footprint.
	SlabCacheEntries int

	// SpoolDir, if non-empty, spools per-edge candidate lists to disk
	// under this directory instead of keeping them only in memory.
	SpoolDir string
}

// DefaultOpts mirrors the parameter defaults spelled out in spec.md §4.1
// and §6, and TeraStitcher's own PDAlgoMIPNCC.cpp defaults.
var DefaultOpts = Opts{
	OverlapV:      100,
	OverlapH:      100,
	SearchRadiusV: 10,
	SearchRadiusH: 10,
	SearchRadiusD: 5,
	SubvolDimD:    50,

	ReliabilityThreshold: 0.7,

	StartRow: 0,
	EndRow:   -1,
	StartCol: 0,
	EndCol:   -1,

	Enhance:      false,
	MaxIter:      2,
	MaxThr:       0.10,
	WidthThr:     0.80,
	WRangeThrV:   10,
	WRangeThrH:   10,
	WRangeThrD:   5,
	MinPoints:    3,
	MinDimNCCSrc: 25,
	MinDimNCCMap: 3,

	Parallelism: 4,

	SourceRow: -1,
	SourceCol: -1,

	CacheSlabs:       true,
	SlabCacheEntries: 256,

	SpoolDir: "",
}
