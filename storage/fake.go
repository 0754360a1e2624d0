package storage

import "github.com/nimbus-imaging/volstitch/stiterr"

// FakeStore is an in-memory TileStore used by tests: a map from (row,col)
// to a flat depth-major/row-major float64 buffer. Spec.md §9 calls these
// out explicitly as one of the three expected TileStore implementations
// ("tiled-TIFF-backed, raw-backed, and in-memory test fakes").
type FakeStore struct {
	Dims  Dims
	Tiles map[[2]int][]float64 // key is [row,col]; value is Height*Width*Depth samples
}

// NewFakeStore returns an empty FakeStore with the given uniform tile
// dimensions.
func NewFakeStore(dims Dims) *FakeStore {
	return &FakeStore{Dims: dims, Tiles: map[[2]int][]float64{}}
}

// Put installs the full-volume data for tile (row,col). data must have
// length Height*Width*Depth, depth-major then row-major.
func (s *FakeStore) Put(row, col int, data []float64) {
	s.Tiles[[2]int{row, col}] = data
}

// Dimensions implements TileStore.
func (s *FakeStore) Dimensions(row, col int) (int, int, int, error) {
	return s.Dims.Height, s.Dims.Width, s.Dims.Depth, nil
}

// ReadSlab implements TileStore.
func (s *FakeStore) ReadSlab(row, col, v0, v1, h0, h1, d0, d1 int) ([]float64, error) {
	data, ok := s.Tiles[[2]int{row, col}]
	if !ok {
		return nil, stiterr.E(stiterr.ReadFailure, "no such tile", row, col)
	}
	if v0 < 0 || h0 < 0 || d0 < 0 || v1 > s.Dims.Height || h1 > s.Dims.Width || d1 > s.Dims.Depth || v0 >= v1 || h0 >= h1 || d0 >= d1 {
		return nil, stiterr.E(stiterr.InvalidInput, "window out of bounds", row, col)
	}
	planeSamples := s.Dims.Height * s.Dims.Width
	rowWidth := h1 - h0
	out := make([]float64, 0, (d1-d0)*(v1-v0)*rowWidth)
	for d := d0; d < d1; d++ {
		for v := v0; v < v1; v++ {
			base := d*planeSamples + v*s.Dims.Width + h0
			out = append(out, data[base:base+rowWidth]...)
		}
	}
	return out, nil
}
