// Package stitchctx provides the cooperative-cancellation primitive used
// across the phase-sequential pipeline (spec.md §5): a flag checked
// between tile pairs, never inside a single MIP-NCC call.
package stitchctx

import (
	"context"
	"sync/atomic"

	"github.com/grailbio/base/vcontext"
)

// Background returns the pipeline's root context, matching
// grailbio/base/vcontext.Background()'s role in cmd/bio-fusion/main.go
// and markduplicates.generateBAM.
func Background() context.Context { return vcontext.Background() }

// CancelFlag is a cheap, lock-free flag a driver loop polls between work
// items. Spec.md §5: "Between any two edges, a cancellation flag may be
// checked; mid-correlation cancellation is not required."
type CancelFlag struct {
	v int32
}

// Cancel requests cancellation. Safe to call from any goroutine, any
// number of times.
func (f *CancelFlag) Cancel() { atomic.StoreInt32(&f.v, 1) }

// Cancelled reports whether Cancel has been called.
func (f *CancelFlag) Cancelled() bool { return atomic.LoadInt32(&f.v) != 0 }
