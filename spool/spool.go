// Package spool provides optional on-disk spooling of per-edge candidate
// displacements for grids too large to hold entirely in memory (spec.md
// §9's supplemented-features note on very large grids). It is modeled
// directly on
// github.com/grailbio/bio/encoding/bampair/disk_mate_shard.go's
// length-prefixed, snappy-framed record shard: add()/closeWriter() during
// the concurrent candidate-generation phase, then openReader()/getAll()/
// closeReader() during the single-threaded projection phase. Where the
// teacher snappy-frames raw BAM bytes, this package gzip-compresses the
// records first (github.com/klauspost/compress/gzip) and snappy-frames the
// gzip stream, since displacement records are small, fixed-width, and
// benefit from an entropy-coding pass that snappy alone does not provide.
package spool

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/snappy"
	kgzip "github.com/klauspost/compress/gzip"

	"github.com/nimbus-imaging/volstitch/dispgraph"
	"github.com/nimbus-imaging/volstitch/stiterr"
	"github.com/nimbus-imaging/volstitch/stlog"
	"github.com/nimbus-imaging/volstitch/volpb"
)

const recordSize = 8*4 + 8*volpb.NumAxes + 8 + 8*volpb.NumAxes

// Shard is a single on-disk spool file holding candidates for a subset of
// edges. add() is safe for concurrent callers on distinct or identical
// edges; openReader()/getAll()/closeReader() are for the later
// single-threaded projection phase.
type Shard struct {
	path   string
	mu     sync.Mutex
	f      *os.File
	gw     *kgzip.Writer
	sw     *snappy.Writer
	closed bool

	refcount int
	byEdge   map[int][]volpb.Displacement3 // populated by openReader
}

// NewShard creates a new spool shard file at path (truncating any
// existing file).
func NewShard(path string) (*Shard, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, stiterr.E(stiterr.ReadFailure, "spool: create", path, err)
	}
	sw := snappy.NewBufferedWriter(f)
	gw := kgzip.NewWriter(sw)
	return &Shard{path: path, f: f, gw: gw, sw: sw}, nil
}

// Add appends one edge/displacement pair to the shard. idx is the edge's
// dispgraph.Graph index (dispgraph.Graph.Index), so the reader side can
// reconstruct edge identity without depending on the grid's shape at
// write time.
func (s *Shard) Add(idx int, d volpb.Displacement3) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var buf [8 + recordSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(recordSize))
	encodeDisplacement(buf[8:], idx, d)
	if _, err := s.gw.Write(buf[:]); err != nil {
		return stiterr.E(stiterr.ReadFailure, "spool: write", s.path, err)
	}
	return nil
}

func encodeDisplacement(b []byte, idx int, d volpb.Displacement3) {
	putInt64(b[0:8], int64(idx))
	putInt64(b[8:16], int64(d.Coord.V))
	putInt64(b[16:24], int64(d.Coord.H))
	putInt64(b[24:32], int64(d.Coord.D))
	off := 32
	for a := 0; a < volpb.NumAxes; a++ {
		binary.LittleEndian.PutUint64(b[off:off+8], math.Float64bits(d.NCCMax[a]))
		off += 8
	}
	for a := 0; a < volpb.NumAxes; a++ {
		putInt64(b[off:off+8], int64(d.NCCWidth[a]))
		off += 8
	}
	putInt64(b[off:off+8], int64(d.DChunkIndex))
}

func decodeDisplacement(b []byte) (int, volpb.Displacement3) {
	idx := int(getInt64(b[0:8]))
	var d volpb.Displacement3
	d.Coord.V = int(getInt64(b[8:16]))
	d.Coord.H = int(getInt64(b[16:24]))
	d.Coord.D = int(getInt64(b[24:32]))
	off := 32
	for a := 0; a < volpb.NumAxes; a++ {
		d.NCCMax[a] = math.Float64frombits(binary.LittleEndian.Uint64(b[off : off+8]))
		off += 8
	}
	for a := 0; a < volpb.NumAxes; a++ {
		d.NCCWidth[a] = int(getInt64(b[off : off+8]))
		off += 8
	}
	d.DChunkIndex = int(getInt64(b[off : off+8]))
	return idx, d
}

func putInt64(b []byte, v int64) { binary.LittleEndian.PutUint64(b, uint64(v)) }
func getInt64(b []byte) int64    { return int64(binary.LittleEndian.Uint64(b)) }

// CloseWriter flushes and closes the shard for writing. Must be called
// after every Add has returned, before OpenReader.
func (s *Shard) CloseWriter() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.gw.Close(); err != nil {
		return stiterr.E(stiterr.ReadFailure, "spool: close gzip", s.path, err)
	}
	if err := s.sw.Close(); err != nil {
		return stiterr.E(stiterr.ReadFailure, "spool: close snappy", s.path, err)
	}
	return s.f.Close()
}

// OpenReader loads the shard's full contents into memory, keyed by edge
// index. Reference-counted so multiple projection workers can share one
// open shard.
func (s *Shard) OpenReader() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refcount++
	if s.refcount > 1 {
		return nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		return stiterr.E(stiterr.ReadFailure, "spool: reopen", s.path, err)
	}
	defer f.Close()
	sr := snappy.NewReader(f)
	gr, err := kgzip.NewReader(sr)
	if err != nil {
		return stiterr.E(stiterr.ReadFailure, "spool: gzip header", s.path, err)
	}
	defer gr.Close()

	s.byEdge = map[int][]volpb.Displacement3{}
	var lenBuf [8]byte
	for {
		if _, err := io.ReadFull(gr, lenBuf[:]); err == io.EOF {
			break
		} else if err != nil {
			return stiterr.E(stiterr.ReadFailure, "spool: read length", s.path, err)
		}
		n := binary.LittleEndian.Uint64(lenBuf[:])
		if n != recordSize {
			return stiterr.E(stiterr.ReadFailure, "spool: corrupt record size", s.path, n)
		}
		rec := make([]byte, n)
		if _, err := io.ReadFull(gr, rec); err != nil {
			return stiterr.E(stiterr.ReadFailure, "spool: read record", s.path, err)
		}
		idx, d := decodeDisplacement(rec)
		s.byEdge[idx] = append(s.byEdge[idx], d)
	}
	stlog.Debugf("spool: loaded shard %s with %d edges", s.path, len(s.byEdge))
	return nil
}

// GetAll returns the spooled candidates for edge index idx. Must be
// called between OpenReader and CloseReader.
func (s *Shard) GetAll(idx int) []volpb.Displacement3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byEdge[idx]
}

// CloseReader releases this caller's reference; the in-memory index is
// freed once the last reference is released.
func (s *Shard) CloseReader() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refcount--
	if s.refcount == 0 {
		s.byEdge = nil
	}
}

// Spool distributes candidate writes for a full grid across numShards
// on-disk shards, sharded by edge index modulo numShards, so a single
// displacement graph that doesn't fit in memory can still be built
// incrementally during phase 4.2 and replayed before phase 4.3.
type Spool struct {
	shards []*Shard
}

// Open creates numShards new shard files under dir, named
// "shard-%04d-of-%04d".
func Open(dir string, numShards int) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, stiterr.E(stiterr.ReadFailure, "spool: mkdir", dir, err)
	}
	sp := &Spool{shards: make([]*Shard, numShards)}
	for i := 0; i < numShards; i++ {
		path := filepath.Join(dir, fmt.Sprintf("shard-%04d-of-%04d", i, numShards))
		sh, err := NewShard(path)
		if err != nil {
			return nil, err
		}
		sp.shards[i] = sh
	}
	return sp, nil
}

func (sp *Spool) shardFor(idx int) *Shard {
	return sp.shards[idx%len(sp.shards)]
}

// Add spools one candidate for the edge at graph index idx (from
// (*dispgraph.Graph).Index). Safe for concurrent callers.
func (sp *Spool) Add(idx int, d volpb.Displacement3) error {
	return sp.shardFor(idx).Add(idx, d)
}

// AddEdge is a convenience wrapper taking a dispgraph.Edge directly.
func (sp *Spool) AddEdge(g *dispgraph.Graph, e dispgraph.Edge, d volpb.Displacement3) error {
	return sp.Add(g.Index(e), d)
}

// CloseWriters closes every shard for writing.
func (sp *Spool) CloseWriters() error {
	for _, sh := range sp.shards {
		if err := sh.CloseWriter(); err != nil {
			return err
		}
	}
	return nil
}

// Replay opens every shard for reading and invokes fn once per spooled
// (edgeIndex, displacement) pair, then closes the shards again. Intended
// to be called once, single-threaded, to merge spooled candidates back
// into an in-memory dispgraph.Graph before projection.
func (sp *Spool) Replay(fn func(idx int, d volpb.Displacement3)) error {
	for _, sh := range sp.shards {
		if err := sh.OpenReader(); err != nil {
			return err
		}
	}
	defer func() {
		for _, sh := range sp.shards {
			sh.CloseReader()
		}
	}()
	for _, sh := range sp.shards {
		for idx, ds := range sh.byEdge {
			for _, d := range ds {
				fn(idx, d)
			}
		}
	}
	return nil
}
