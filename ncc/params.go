package ncc

import (
	"github.com/nimbus-imaging/volstitch/config"
	"github.com/nimbus-imaging/volstitch/volpb"
)

// Transform is one breakpoint of a piecewise-linear contrast remap: pixels
// at cumulative histogram fraction <= Percent are mapped towards Value
// (spec.md §4.1 step 1).
type Transform struct {
	Percent float64
	Value   float64
}

// Params mirrors TeraStitcher's NCC_parms_t (PDAlgoMIPNCC.cpp /
// CrossMIPs.h): the full set of tunables governing one correlate() call.
type Params struct {
	Enhance    bool
	Transforms []Transform // used only when Enhance; last Percent must be 1.0

	MaxIter  int
	MaxThr   float64
	WidthThr float64

	// WRangeThr is indexed by volpb.Axis: the per-axis width at or beyond
	// which a peak's width is reported as volpb.InfWidth.
	WRangeThr [volpb.NumAxes]int

	MinPoints    int
	MinDimNCCSrc int
	MinDimNCCMap int
}

// FromOpts builds Params from the pipeline-wide config.Opts. config.Opts
// carries no contrast breakpoints, so the returned Transforms is empty and
// enhance leaves the data unchanged even when Enhance is set.
func FromOpts(o config.Opts) Params {
	var p Params
	p.Enhance = o.Enhance
	p.MaxIter = o.MaxIter
	p.MaxThr = o.MaxThr
	p.WidthThr = o.WidthThr
	p.WRangeThr[volpb.AxisV] = o.WRangeThrV
	p.WRangeThr[volpb.AxisH] = o.WRangeThrH
	p.WRangeThr[volpb.AxisD] = o.WRangeThrD
	p.MinPoints = o.MinPoints
	p.MinDimNCCSrc = o.MinDimNCCSrc
	p.MinDimNCCMap = o.MinDimNCCMap
	return p
}
