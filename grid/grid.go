package grid

import (
	"github.com/nimbus-imaging/volstitch/stiterr"
)

// Grid is a dense R x C rectangular arrangement of tiles with no holes
// (spec.md §3's invariant). It exposes N_ROWS/N_COLS/N_SLICES and
// neighbor lookups per spec.md §4.5.
type Grid struct {
	rows, cols int
	tiles      []*Tile // row-major, length rows*cols
}

// New validates tiles (spec.md's InconsistentTopology check: dense
// rectangular grid, uniform dimensions across all tiles) and returns a
// Grid. tiles must be indexed by (row*cols + col).
func New(rows, cols int, tiles []*Tile) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, stiterr.E(stiterr.InconsistentTopology, "grid must be at least 1x1, got %dx%d", rows, cols)
	}
	if len(tiles) != rows*cols {
		return nil, stiterr.E(stiterr.InconsistentTopology, "expected %d tiles for a %dx%d grid, got %d", rows*cols, rows, cols, len(tiles))
	}
	var h, w, d, bits, ch int
	for i, t := range tiles {
		if t == nil {
			return nil, stiterr.E(stiterr.InconsistentTopology, "missing tile at grid index %d", i)
		}
		wantRow, wantCol := i/cols, i%cols
		if t.Row != wantRow || t.Col != wantCol {
			return nil, stiterr.E(stiterr.InconsistentTopology, "tile at index %d has indices (%d,%d), want (%d,%d)", i, t.Row, t.Col, wantRow, wantCol)
		}
		if i == 0 {
			h, w, d, bits, ch = t.Height, t.Width, t.Depth, t.BitsPerChannel, t.Channels
			continue
		}
		if t.Height != h || t.Width != w || t.Depth != d {
			return nil, stiterr.E(stiterr.InconsistentTopology, "tile (%d,%d) has dimensions %dx%dx%d, want %dx%dx%d", t.Row, t.Col, t.Height, t.Width, t.Depth, h, w, d)
		}
		if t.BitsPerChannel != bits || t.Channels != ch {
			return nil, stiterr.E(stiterr.InconsistentTopology, "tile (%d,%d) has bit depth/channels %d/%d, want %d/%d", t.Row, t.Col, t.BitsPerChannel, t.Channels, bits, ch)
		}
	}
	return &Grid{rows: rows, cols: cols, tiles: tiles}, nil
}

// NRows, NCols are the grid's dimensions.
func (g *Grid) NRows() int { return g.rows }
func (g *Grid) NCols() int { return g.cols }

// NSlices returns the per-tile depth, uniform across the grid.
func (g *Grid) NSlices() int {
	if len(g.tiles) == 0 {
		return 0
	}
	return g.tiles[0].Depth
}

// Tile returns the tile at (row,col), or nil if out of range.
func (g *Grid) Tile(row, col int) *Tile {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return nil
	}
	return g.tiles[row*g.cols+col]
}

// South returns the tile immediately south of (row,col) (row+1,col), or
// nil if it would be out of range.
func (g *Grid) South(row, col int) *Tile { return g.Tile(row+1, col) }

// East returns the tile immediately east of (row,col) (row,col+1), or nil
// if it would be out of range.
func (g *Grid) East(row, col int) *Tile { return g.Tile(row, col+1) }

// North returns the tile immediately north of (row,col).
func (g *Grid) North(row, col int) *Tile { return g.Tile(row-1, col) }

// West returns the tile immediately west of (row,col).
func (g *Grid) West(row, col int) *Tile { return g.Tile(row, col-1) }

// Tiles returns every tile in row-major order. Callers must not mutate
// the returned slice's backing array.
func (g *Grid) Tiles() []*Tile { return g.tiles }

// Index returns the row-major index of (row,col), matching the
// "index-keyed adjacency array sized 2*R*C" convention spec.md §9
// prescribes for edges (two directed slots per tile: N-S and W-E).
func (g *Grid) Index(row, col int) int { return row*g.cols + col }
