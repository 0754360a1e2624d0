package ncc_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-imaging/volstitch/ncc"
	"github.com/nimbus-imaging/volstitch/volpb"
)

func syntheticVolume(v, h, d int, seed int64) ncc.Volume {
	r := rand.New(rand.NewSource(seed))
	data := make([]float64, v*h*d)
	for k := range data {
		vv, hh := (k/d)%h, (k/(d*h))%v
		dd := k % d
		data[k] = math.Sin(float64(vv)*0.2) + math.Cos(float64(hh)*0.15) + math.Sin(float64(dd)*0.3)
	}
	_ = r
	return ncc.Volume{V: v, H: h, D: d, Data: data}
}

func shift(vol ncc.Volume, dv, dh, dd int, noise float64, seed int64) ncc.Volume {
	r := rand.New(rand.NewSource(seed))
	out := ncc.Volume{V: vol.V, H: vol.H, D: vol.D, Data: make([]float64, len(vol.Data))}
	for v := 0; v < vol.V; v++ {
		for h := 0; h < vol.H; h++ {
			for d := 0; d < vol.D; d++ {
				sv, sh, sd := v-dv, h-dh, d-dd
				val := 0.0
				if sv >= 0 && sv < vol.V && sh >= 0 && sh < vol.H && sd >= 0 && sd < vol.D {
					val = vol.Data[sd*vol.V*vol.H+sv*vol.H+sh]
				}
				val += noise * (r.Float64()*2 - 1)
				out.Data[d*vol.V*vol.H+v*vol.H+h] = val
			}
		}
	}
	return out
}

func defaultParams() ncc.Params {
	return ncc.Params{
		MaxIter:      2,
		MaxThr:       0.10,
		WidthThr:     0.80,
		WRangeThr:    [volpb.NumAxes]int{10, 10, 5},
		MinPoints:    3,
		MinDimNCCSrc: 25,
		MinDimNCCMap: 3,
	}
}

func TestCorrelateSyntheticPair(t *testing.T) {
	a := syntheticVolume(64, 64, 16, 1)
	b := shift(a, 3, -5, 2, 0.02, 2)

	radius := volpb.Coord3{V: 10, H: 10, D: 5}
	d, err := ncc.Correlate(a, b, volpb.Coord3{}, radius, volpb.NorthSouth, defaultParams())
	require.NoError(t, err)

	assert.Equal(t, 3, d.Coord.V)
	assert.Equal(t, -5, d.Coord.H)
	assert.Equal(t, 2, d.Coord.D)
	for k := 0; k < volpb.NumAxes; k++ {
		assert.Greater(t, d.NCCMax[k], 0.5, "axis %d", k)
	}
}

func TestCorrelateUnreliablePair(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	mk := func(seed int64) ncc.Volume {
		rr := rand.New(rand.NewSource(seed))
		data := make([]float64, 40*40*10)
		for i := range data {
			data[i] = rr.Float64()
		}
		return ncc.Volume{V: 40, H: 40, D: 10, Data: data}
	}
	_ = r
	a := mk(10)
	b := mk(20)

	radius := volpb.Coord3{V: 5, H: 5, D: 3}
	d, err := ncc.Correlate(a, b, volpb.Coord3{}, radius, volpb.WestEast, defaultParams())
	require.NoError(t, err)

	for k := 0; k < volpb.NumAxes; k++ {
		if d.NCCMax[k] != volpb.UnreliableNCC {
			assert.Less(t, d.NCCMax[k], 0.5, "axis %d should not show a strong spurious peak", k)
		}
	}
}

// TestCorrelateFlatOverlapWidthSentinel pins the width-sentinel path
// (correlate2d.go's wRangeThr clamp): even a pair with a genuine
// correlation peak is reported unreliable once that peak's width meets
// or exceeds WRangeThr, the way a flat, featureless overlap produces a
// broad, indiscriminate peak rather than a sharp one. Driving WRangeThr
// to zero forces the clamp on every axis regardless of the underlying
// data, isolating the sentinel logic from peak-location correctness.
func TestCorrelateFlatOverlapWidthSentinel(t *testing.T) {
	a := syntheticVolume(64, 64, 16, 7)
	b := shift(a, 3, -5, 2, 0.02, 8)

	p := defaultParams()
	p.WRangeThr = [volpb.NumAxes]int{0, 0, 0}

	radius := volpb.Coord3{V: 10, H: 10, D: 5}
	d, err := ncc.Correlate(a, b, volpb.Coord3{}, radius, volpb.NorthSouth, p)
	require.NoError(t, err)

	for k := 0; k < volpb.NumAxes; k++ {
		assert.Equal(t, volpb.InfWidth, d.NCCWidth[k], "axis %d", k)
		assert.Equal(t, volpb.InvCoord, d.Coord.Get(volpb.Axis(k)), "axis %d", k)
	}
}

func TestCorrelateRejectsNonzeroNominalD(t *testing.T) {
	a := syntheticVolume(40, 40, 10, 3)
	b := syntheticVolume(40, 40, 10, 4)
	_, err := ncc.Correlate(a, b, volpb.Coord3{D: 1}, volpb.Coord3{V: 5, H: 5, D: 2}, volpb.NorthSouth, defaultParams())
	assert.Error(t, err)
}

func TestCorrelateRejectsRadiusExceedingDims(t *testing.T) {
	a := syntheticVolume(10, 10, 4, 5)
	b := syntheticVolume(10, 10, 4, 6)
	_, err := ncc.Correlate(a, b, volpb.Coord3{}, volpb.Coord3{V: 10, H: 10, D: 5}, volpb.NorthSouth, defaultParams())
	assert.Error(t, err)
}
