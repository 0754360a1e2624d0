package ncc

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/nimbus-imaging/volstitch/volpb"
)

// axisResult is one map-axis's contribution to the combined 3-D offset
// (spec.md §4.1 step 6): an offset, a reliability, and a width, all
// produced by a single 2-D NCC map.
type axisResult struct {
	offset  int
	reliable bool
	nccMax  float64
	width   int
}

// ncc2DResult holds both in-plane axes' results from one MIP pair's 2-D
// NCC search.
type ncc2DResult struct {
	axis0, axis1 axisResult
}

// searchOffsets computes the 2-D NCC map between a and b over
// [-delta0,delta0] x [-delta1,delta1], locates its peak, and derives
// per-axis width and reliability (spec.md §4.1 steps 3-5). a and b must
// have identical dimensions.
func searchOffsets(a, b mipImage, delta0, delta1 int, p Params) ncc2DResult {
	// Map dimension check (spec.md step 3: "resulting map must have both
	// dimensions >= minDim_NCCmap").
	mapDim0 := 2*delta0 + 1
	mapDim1 := 2*delta1 + 1
	if mapDim0 < p.MinDimNCCMap || mapDim1 < p.MinDimNCCMap {
		return unreliable2D()
	}

	ncc := make([][]float64, mapDim0)
	valid := make([][]bool, mapDim0)
	for i := range ncc {
		ncc[i] = make([]float64, mapDim1)
		valid[i] = make([]bool, mapDim1)
	}

	bestU, bestV, bestVal := 0, 0, math.Inf(-1)
	found := false

	for ui := -delta0; ui <= delta0; ui++ {
		for vi := -delta1; vi <= delta1; vi++ {
			val, ok := windowedNCC(a, b, ui, vi, p.MinDimNCCSrc)
			i, j := ui+delta0, vi+delta1
			valid[i][j] = ok
			if !ok {
				continue
			}
			ncc[i][j] = val
			if val > bestVal {
				bestVal, bestU, bestV, found = val, ui, vi, true
			}
		}
	}
	if !found {
		return unreliable2D()
	}

	pi, pj := bestU+delta0, bestV+delta1
	w0 := peakWidth(ncc, valid, pi, pj, 0, bestVal, p.WidthThr)
	w1 := peakWidth(ncc, valid, pi, pj, 1, bestVal, p.WidthThr)

	if w0 >= p.WRangeThr[a.Axis0] {
		w0 = volpb.InfWidth
	}
	if w1 >= p.WRangeThr[a.Axis1] {
		w1 = volpb.InfWidth
	}

	// Isolation check (spec.md §4.1 step 5): a peak whose width region
	// spans fewer than minPoints samples is too narrow to trust.
	r0 := w0 != volpb.InfWidth && (w0+1) >= p.MinPoints
	r1 := w1 != volpb.InfWidth && (w1+1) >= p.MinPoints

	return ncc2DResult{
		axis0: axisResult{offset: bestU, reliable: r0, nccMax: bestVal, width: w0},
		axis1: axisResult{offset: bestV, reliable: r1, nccMax: bestVal, width: w1},
	}
}

func unreliable2D() ncc2DResult {
	return ncc2DResult{
		axis0: axisResult{nccMax: volpb.UnreliableNCC, width: volpb.InfWidth},
		axis1: axisResult{nccMax: volpb.UnreliableNCC, width: volpb.InfWidth},
	}
}

// windowedNCC computes normalized cross-correlation between a and a
// (ui,vi)-shifted b, pairing a(i,j) with b(i+ui,j+vi) over their
// overlapping window, so a b whose content sits (ui,vi) further along
// than a's peaks at offset (ui,vi). The means use gonum/stat; the cross
// and variance sums are accumulated in one loop (spec.md §4.1 step 3's
// formula).
func windowedNCC(a, b mipImage, ui, vi, minDim int) (float64, bool) {
	i0, i1 := overlapRange(a.Dim0, -ui)
	j0, j1 := overlapRange(a.Dim1, -vi)
	if i1-i0 < minDim || j1-j0 < minDim {
		return 0, false
	}

	n := (i1 - i0) * (j1 - j0)
	av := make([]float64, 0, n)
	bv := make([]float64, 0, n)
	for i := i0; i < i1; i++ {
		for j := j0; j < j1; j++ {
			av = append(av, a.at(i, j))
			bv = append(bv, b.at(i+ui, j+vi))
		}
	}

	am := stat.Mean(av, nil)
	bm := stat.Mean(bv, nil)

	var num, da, db float64
	for k := range av {
		ea := av[k] - am
		eb := bv[k] - bm
		num += ea * eb
		da += ea * ea
		db += eb * eb
	}
	denom := math.Sqrt(da * db)
	if denom == 0 {
		return 0, false
	}
	return num / denom, true
}

// overlapRange returns the [lo,hi) range of indices into a that remain in
// bounds once b is shifted by offset along this axis.
func overlapRange(dim, offset int) (int, int) {
	lo := 0
	if offset > 0 {
		lo = offset
	}
	hi := dim
	if offset < 0 {
		hi = dim + offset
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// peakWidth counts contiguous in-range samples around (pi,pj) along the
// given map dimension (0 or 1) whose value exceeds widthThr*peak,
// extending outward until the threshold is first violated or the search
// range is exhausted (spec.md §4.1 step 4).
func peakWidth(ncc [][]float64, valid [][]bool, pi, pj, dim int, peak, widthThr float64) int {
	thresh := widthThr * peak
	width := 0
	// outward in the positive direction
	for k := 1; ; k++ {
		i, j := pi, pj
		if dim == 0 {
			i = pi + k
		} else {
			j = pj + k
		}
		if i < 0 || i >= len(ncc) || j < 0 || j >= len(ncc[0]) || !valid[i][j] || ncc[i][j] <= thresh {
			break
		}
		width++
	}
	// outward in the negative direction
	for k := 1; ; k++ {
		i, j := pi, pj
		if dim == 0 {
			i = pi - k
		} else {
			j = pj - k
		}
		if i < 0 || i >= len(ncc) || j < 0 || j >= len(ncc[0]) || !valid[i][j] || ncc[i][j] <= thresh {
			break
		}
		width++
	}
	return width
}
