package ncc

import "github.com/nimbus-imaging/volstitch/volpb"

// Volume is a dense 3-D sub-volume stored depth-major then row-major
// (spec.md §4.1's contract): Data[d*V*H + v*H + h] is the sample at
// (v, h, d).
type Volume struct {
	V, H, D int
	Data    []float64
}

func (vol Volume) at(v, h, d int) float64 {
	return vol.Data[d*vol.V*vol.H+v*vol.H+h]
}

// dim returns the extent of vol along the given spatial axis.
func (vol Volume) dim(a volpb.Axis) int {
	switch a {
	case volpb.AxisV:
		return vol.V
	case volpb.AxisH:
		return vol.H
	default:
		return vol.D
	}
}

// coord returns the (v,h,d) voxel's coordinate along axis a.
func coord(v, h, d int, a volpb.Axis) int {
	switch a {
	case volpb.AxisV:
		return v
	case volpb.AxisH:
		return h
	default:
		return d
	}
}
