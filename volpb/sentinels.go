package volpb

// Sentinel values shared by the candidate-displacement type (spec.md §9:
// "Sentinel values ... should be constants of the candidate-displacement
// type, not magic numbers sprinkled through the code").
const (
	// InvCoord marks a displacement coordinate as invalid/unmeasured.
	InvCoord = 0

	// UnreliableNCC marks a per-axis NCC reliability as unreliable.
	UnreliableNCC = -1.0

	// InfWidth marks a peak width as having exceeded the search range, or
	// as otherwise meaningless (no qualifying candidate).
	InfWidth = 1 << 30

	// UnreliableWeight is the MST edge weight assigned to an axis with
	// zero or non-positive reliability -- large enough that any path
	// using a reliable edge is always preferred, but finite so relaxation
	// still terminates (spec.md §4.4).
	UnreliableWeight = 1e6
)

// Side names which pair of directional neighbors an edge connects.
type Side int

const (
	// NorthSouth connects tile (r,c) to (r+1,c).
	NorthSouth Side = iota
	// WestEast connects tile (r,c) to (r,c+1).
	WestEast
)

func (s Side) String() string {
	if s == NorthSouth {
		return "N-S"
	}
	return "W-E"
}

// Displacement3 is a candidate 3-D displacement produced by the MIP-NCC
// engine: an integer offset plus per-axis reliability and width.
type Displacement3 struct {
	Coord       Coord3
	NCCMax      [NumAxes]float64
	NCCWidth    [NumAxes]int
	DChunkIndex int // provenance: which D-chunk (sub-volume) produced this
}

// ReliableOn reports whether this displacement's component on axis a
// qualifies as reliable against threshold (spec.md §4.3).
func (d Displacement3) ReliableOn(a Axis, threshold float64) bool {
	return d.NCCMax[a] >= threshold && d.NCCWidth[a] < InfWidth
}

// Unreliable returns a Displacement3 with every axis marked unreliable.
func Unreliable() Displacement3 {
	d := Displacement3{Coord: Coord3{InvCoord, InvCoord, InvCoord}}
	for a := 0; a < NumAxes; a++ {
		d.NCCMax[a] = UnreliableNCC
		d.NCCWidth[a] = InfWidth
	}
	return d
}
