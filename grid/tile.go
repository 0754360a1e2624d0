// Package grid implements the volume grid model (spec.md §3, §4.5): tiles
// arranged on a row x column mechanical grid, each owning a stack of
// slices, a nominal origin, and (once MST placement runs) an absolute
// position.
package grid

import (
	"github.com/nimbus-imaging/volstitch/storage"
	"github.com/nimbus-imaging/volstitch/volpb"
)

// Tile is one acquired 3-D stack sitting at (Row,Col) of the mechanical
// grid (spec.md's "VirtualStack").
type Tile struct {
	Row, Col int

	// Nominal is the nominal origin on V/H/D, in voxels, derived from
	// mechanical stage + pixel-pitch metadata (an external collaborator's
	// concern; the grid model only stores the resulting value).
	Nominal volpb.Coord3

	// Height, Width, Depth are the stack's voxel dimensions, uniform
	// across all tiles in a volume (spec.md's grid invariant).
	Height, Width, Depth int

	// BitsPerChannel and Channels are pixel-format metadata passed
	// through from the project file.
	BitsPerChannel int
	Channels       int

	// Store backs ReadSlab; see storage.TileStore. Implementations
	// include local-file-backed, S3-backed, and in-memory test fakes
	// (spec.md §9's "polymorphism over tile storage").
	Store storage.TileStore

	// absolute is set exactly once, by placement.Place (spec.md's
	// lifecycle invariant).
	absolute   volpb.Coord3
	assigned   [volpb.NumAxes]bool
	stitchable bool
}

// Absolute returns the tile's absolute coordinate. Valid only once all
// three axes have been assigned; callers needing partial state should use
// AssignedOn.
func (t *Tile) Absolute() volpb.Coord3 { return t.absolute }

// AssignedOn reports whether axis a has been assigned an absolute
// coordinate yet (spec.md §4.4's per-axis state machine).
func (t *Tile) AssignedOn(a volpb.Axis) bool { return t.assigned[a] }

// AssignAbsolute sets the tile's absolute coordinate on axis a exactly
// once. A second call for the same axis panics: absolute coordinates are
// write-once per spec.md's data-model invariant.
func (t *Tile) AssignAbsolute(a volpb.Axis, v int) {
	if t.assigned[a] {
		panic("grid: absolute coordinate already assigned on this axis")
	}
	t.absolute = t.absolute.Set(a, v)
	t.assigned[a] = true
}

// FullyAssigned reports whether all three axes have been assigned.
func (t *Tile) FullyAssigned() bool {
	return t.assigned[volpb.AxisV] && t.assigned[volpb.AxisH] && t.assigned[volpb.AxisD]
}

// Translate shifts an already-fully-assigned tile's absolute coordinate
// by delta. Unlike AssignAbsolute this may be called after assignment;
// it exists solely for placement's final (0,0)-normalization pass
// (spec.md §4.4), which is a one-time global shift applied after every
// tile's axes are already assigned, not a second per-axis assignment.
func (t *Tile) Translate(delta volpb.Coord3) {
	t.absolute = t.absolute.Add(delta)
}

// SetStitchable marks the tile, per projection/thresholding's decision.
func (t *Tile) SetStitchable(v bool) { t.stitchable = v }

// Stitchable reports whether at least one incident edge has a consensus
// displacement reliable on all three axes (spec.md §3).
func (t *Tile) Stitchable() bool { return t.stitchable }

// ReadSlab reads the sub-volume [v0,v1) x [h0,h1) x [d0,d1) from the
// tile's backing store.
func (t *Tile) ReadSlab(v0, v1, h0, h1, d0, d1 int) ([]float64, error) {
	return t.Store.ReadSlab(t.Row, t.Col, v0, v1, h0, h1, d0, d1)
}
