// Package volpb holds the small value types and sentinel constants shared
// across the stitching pipeline: 3-D coordinates, displacements, and the
// reliability/width sentinels used to flag unreliable correlation results.
//
// These are hand-written convenience types, not generated from a .proto
// schema -- the pipeline's durable wire format is the project XML file
// (an external collaborator, see cmd/volstitch), not protobuf.
package volpb

import "fmt"

// Axis indexes the three spatial axes a displacement or coordinate is
// carried on. The order V, H, D matches the order tiles are addressed in
// throughout the pipeline (vertical, horizontal, depth).
type Axis int

const (
	AxisV Axis = iota
	AxisH
	AxisD
	numAxes = 3
)

func (a Axis) String() string {
	switch a {
	case AxisV:
		return "V"
	case AxisH:
		return "H"
	case AxisD:
		return "D"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// NumAxes is the number of spatial axes tracked by the pipeline.
const NumAxes = numAxes

// Coord3 is a 3-D integer coordinate or displacement, in voxels.
type Coord3 struct {
	V, H, D int
}

// Get returns the component of c on the given axis.
func (c Coord3) Get(a Axis) int {
	switch a {
	case AxisV:
		return c.V
	case AxisH:
		return c.H
	default:
		return c.D
	}
}

// Set returns a copy of c with the component on axis a replaced by v.
func (c Coord3) Set(a Axis, v int) Coord3 {
	switch a {
	case AxisV:
		c.V = v
	case AxisH:
		c.H = v
	default:
		c.D = v
	}
	return c
}

// Add returns c+o, component-wise.
func (c Coord3) Add(o Coord3) Coord3 {
	return Coord3{c.V + o.V, c.H + o.H, c.D + o.D}
}

// Sub returns c-o, component-wise.
func (c Coord3) Sub(o Coord3) Coord3 {
	return Coord3{c.V - o.V, c.H - o.H, c.D - o.D}
}

// Compare returns (negative, 0, positive) if (c<c1, c==c1, c>c1) under
// lexicographic (V,H,D) order, for deterministic tie-breaking. MST source
// selection does not use it; placement orders (row,col) cells itself.
func (c Coord3) Compare(c1 Coord3) int {
	if c.V != c1.V {
		return c.V - c1.V
	}
	if c.H != c1.H {
		return c.H - c1.H
	}
	return c.D - c1.D
}

func (c Coord3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.V, c.H, c.D)
}
