package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/nimbus-imaging/volstitch/stiterr"
)

// LocalStore reads tiles from a directory of raw planes: one file per
// tile, named row_col.raw, containing Depth planes of Height*Width
// little-endian float32 samples, row-major within a plane and depth-major
// across planes (spec.md §4.1's storage order). This mirrors the
// teacher's own preference for direct os.Open/os.Create over a
// filesystem abstraction for simple local I/O (cmd/bio-fusion/main.go,
// markduplicates/mark_duplicates.go).
type LocalStore struct {
	Dir  string
	Dims Dims // uniform across the grid, per spec.md's invariant
}

// NewLocalStore returns a LocalStore rooted at dir, with tiles of the
// given uniform dimensions.
func NewLocalStore(dir string, dims Dims) *LocalStore {
	return &LocalStore{Dir: dir, Dims: dims}
}

func (s *LocalStore) path(row, col int) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%d_%d.raw", row, col))
}

// Dimensions implements TileStore.
func (s *LocalStore) Dimensions(row, col int) (int, int, int, error) {
	return s.Dims.Height, s.Dims.Width, s.Dims.Depth, nil
}

// ReadSlab implements TileStore.
func (s *LocalStore) ReadSlab(row, col, v0, v1, h0, h1, d0, d1 int) ([]float64, error) {
	if v0 < 0 || h0 < 0 || d0 < 0 || v1 > s.Dims.Height || h1 > s.Dims.Width || d1 > s.Dims.Depth || v0 >= v1 || h0 >= h1 || d0 >= d1 {
		return nil, stiterr.E(stiterr.InvalidInput, "ReadSlab: window [%d,%d)x[%d,%d)x[%d,%d) out of bounds for tile (%d,%d) of size %dx%dx%d",
			v0, v1, h0, h1, d0, d1, row, col, s.Dims.Height, s.Dims.Width, s.Dims.Depth)
	}
	f, err := os.Open(s.path(row, col))
	if err != nil {
		return nil, stiterr.E(stiterr.ReadFailure, err, "open tile", row, col)
	}
	defer f.Close()

	planeSamples := s.Dims.Height * s.Dims.Width
	rowWidth := h1 - h0
	out := make([]float64, (d1-d0)*(v1-v0)*rowWidth)
	buf := make([]byte, rowWidth*4)
	oi := 0
	for d := d0; d < d1; d++ {
		for v := v0; v < v1; v++ {
			offset := int64(d*planeSamples+v*s.Dims.Width+h0) * 4
			if _, err := f.Seek(offset, io.SeekStart); err != nil {
				return nil, stiterr.E(stiterr.ReadFailure, err, "seek tile", row, col)
			}
			if _, err := io.ReadFull(f, buf); err != nil {
				return nil, stiterr.E(stiterr.ReadFailure, err, "read tile row", row, col)
			}
			for i := 0; i < rowWidth; i++ {
				bits := binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
				out[oi] = float64(math.Float32frombits(bits))
				oi++
			}
		}
	}
	return out, nil
}
