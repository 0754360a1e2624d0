package ncc

import (
	"math"

	"github.com/nimbus-imaging/volstitch/volpb"
)

// projectionAxes returns the two in-plane axes of the Maximum-Intensity
// Projection that collapses proj (spec.md §4.1 step 2): e.g. projecting
// out V leaves a (D,H) image.
func projectionAxes(proj volpb.Axis) [2]volpb.Axis {
	switch proj {
	case volpb.AxisV:
		return [2]volpb.Axis{volpb.AxisD, volpb.AxisH}
	case volpb.AxisH:
		return [2]volpb.Axis{volpb.AxisD, volpb.AxisV}
	default:
		return [2]volpb.Axis{volpb.AxisV, volpb.AxisH}
	}
}

// mipImage is a 2-D Maximum-Intensity Projection along Axis0 x Axis1.
type mipImage struct {
	Axis0, Axis1 volpb.Axis
	Dim0, Dim1   int
	Data         []float64 // row-major: Data[i*Dim1+j]
}

func (m mipImage) at(i, j int) float64 { return m.Data[i*m.Dim1+j] }

// project computes the Maximum-Intensity Projection of vol along proj.
func project(vol Volume, proj volpb.Axis) mipImage {
	axes := projectionAxes(proj)
	m := mipImage{
		Axis0: axes[0],
		Axis1: axes[1],
		Dim0:  vol.dim(axes[0]),
		Dim1:  vol.dim(axes[1]),
	}
	m.Data = make([]float64, m.Dim0*m.Dim1)
	for i := range m.Data {
		m.Data[i] = math.Inf(-1)
	}
	for d := 0; d < vol.D; d++ {
		for v := 0; v < vol.V; v++ {
			for h := 0; h < vol.H; h++ {
				i := coord(v, h, d, m.Axis0)
				j := coord(v, h, d, m.Axis1)
				idx := i*m.Dim1 + j
				if val := vol.at(v, h, d); val > m.Data[idx] {
					m.Data[idx] = val
				}
			}
		}
	}
	return m
}
