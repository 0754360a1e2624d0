// Package storage defines the tile-storage capability the algorithmic core
// depends on (spec.md §6, §9: "Polymorphism over tile storage is a
// capability set {dimensions, readSlab}"), plus two concrete
// implementations: a local-directory backend and an S3 backend, mirroring
// how github.com/grailbio/bio/encoding/bamprovider abstracts over local
// and remote BAM sources.
package storage

import "context"

// TileStore is the capability the core needs from a tile's backing image
// data: read an arbitrary sub-volume window. How the window is actually
// backed -- memory-mapped TIFF, raw stream, cached slab, object storage
// -- is entirely up to the implementation (spec.md §3, §6).
type TileStore interface {
	// Dimensions returns the tile's (height, width, depth) in voxels.
	Dimensions(row, col int) (height, width, depth int, err error)

	// ReadSlab reads the sub-volume [v0,v1) x [h0,h1) x [d0,d1) of tile
	// (row,col), returned depth-major then row-major (spec.md §4.1),
	// as real-valued samples regardless of the on-disk bit depth.
	ReadSlab(row, col, v0, v1, h0, h1, d0, d1 int) ([]float64, error)
}

// Dims is a plain (height,width,depth) triple, used by implementations
// that keep per-tile dimensions in memory rather than re-deriving them.
type Dims struct {
	Height, Width, Depth int
}

// ContextTileStore is implemented by TileStores whose reads can be
// cancelled via context, such as the S3-backed store. Implementations
// that can't honor cancellation (e.g. a local memory-mapped store) need
// not implement it; callers should type-assert.
type ContextTileStore interface {
	TileStore
	ReadSlabContext(ctx context.Context, row, col, v0, v1, h0, h1, d0, d1 int) ([]float64, error)
}
