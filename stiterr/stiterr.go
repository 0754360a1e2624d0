// Package stiterr defines the error taxonomy from the stitching pipeline's
// error-handling design: a handful of named kinds, each with a distinct
// partial-failure policy (see each Kind's doc comment).
package stiterr

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Kind names one of the pipeline's error categories.
type Kind int

const (
	// InvalidInput: preconditions of the MIP-NCC engine were violated
	// (dimensions vs. search radii, channel mismatch). Fatal for the
	// offending pair only; the pipeline continues.
	InvalidInput Kind = iota
	// ReadFailure: the image-reader collaborator raised an I/O error.
	// Same policy as InvalidInput.
	ReadFailure
	// InconsistentTopology: the grid is not rectangular, or tiles have
	// non-uniform dimensions. Fatal to the whole run.
	InconsistentTopology
	// PredecessorGraphCorrupt: MST placement walked to an out-of-range
	// predecessor or a cycle. Fatal to the whole run; indicates a bug.
	PredecessorGraphCorrupt
	// NoStitchableSource: MST placement found zero stitchable tiles.
	// Fatal.
	NoStitchableSource
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case ReadFailure:
		return "ReadFailure"
	case InconsistentTopology:
		return "InconsistentTopology"
	case PredecessorGraphCorrupt:
		return "PredecessorGraphCorrupt"
	case NoStitchableSource:
		return "NoStitchableSource"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// PerPairFatal reports whether errors of this kind are fatal only to the
// offending tile pair (true) or to the whole run (false).
func (k Kind) PerPairFatal() bool {
	return k == InvalidInput || k == ReadFailure
}

// Error wraps an underlying cause with a Kind, using
// github.com/grailbio/base/errors.E for message construction so formatting
// stays consistent with the rest of the pipeline's errors.
type Error struct {
	Kind Kind
	err  error
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }

// E builds a *Error of the given kind. args are formatted the same way
// github.com/grailbio/base/errors.E formats them (a mix of strings and a
// wrapped error).
func E(kind Kind, args ...interface{}) *Error {
	return &Error{Kind: kind, err: errors.E(args...)}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	se, ok := err.(*Error)
	return ok && se.Kind == kind
}
