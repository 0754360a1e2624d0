// Package recorder defines the sink the pipeline's three phases write
// their results to, so that pairwise, projection, and placement never
// import encoding/xml or know that a project file exists at all -- the
// implementations (XMLProject, Nop) live in this package and cmd/volstitch
// is the only package that constructs one
// (spec.md's "project XML persistence" is an external collaborator's
// concern; the core sees only this interface, the same separation the
// teacher draws between fusion's Candidate/GeneDB core and
// cmd/bio-fusion's FASTA/RIO writers).
package recorder

import (
	"github.com/nimbus-imaging/volstitch/dispgraph"
	"github.com/nimbus-imaging/volstitch/volpb"
)

// ProjectRecorder receives the output of each phase as it completes.
// Implementations must be safe for sequential use from a single driver
// goroutine; the pipeline never calls a ProjectRecorder concurrently.
type ProjectRecorder interface {
	// RecordCandidates is called once per edge after pairwise displacement
	// estimation (spec.md §4.2), with every candidate collected for that
	// edge across all D-chunks.
	RecordCandidates(e dispgraph.Edge, candidates []volpb.Displacement3) error

	// RecordConsensus is called once per edge after projection and
	// thresholding (spec.md §4.3), with the edge's consensus displacement.
	RecordConsensus(e dispgraph.Edge, consensus volpb.Displacement3) error

	// RecordPlacement is called once per tile after MST placement
	// (spec.md §4.4), with its final absolute coordinate.
	RecordPlacement(row, col int, absolute volpb.Coord3, stitchable bool) error

	// Close flushes and closes the underlying sink.
	Close() error
}

// Nop discards everything; used when the caller passes no output path.
type Nop struct{}

func (Nop) RecordCandidates(dispgraph.Edge, []volpb.Displacement3) error { return nil }
func (Nop) RecordConsensus(dispgraph.Edge, volpb.Displacement3) error    { return nil }
func (Nop) RecordPlacement(int, int, volpb.Coord3, bool) error           { return nil }
func (Nop) Close() error                                                 { return nil }
