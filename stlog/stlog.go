// Package stlog centralizes the pipeline's logging surface. It re-exports
// github.com/grailbio/base/log for the bulk of progress/diagnostic
// messages (matching the teacher's use of that package throughout
// fusion/ and markduplicates/), and adds a v.io/x/lib/vlog-backed Warning
// channel reserved for MST-placement warnings that should be visible even
// at low verbosity but aren't fatal -- the same split responsibility the
// teacher gives vlog in encoding/bam/shardedbam.go alongside grailbio/base/log.
package stlog

import (
	"github.com/grailbio/base/log"
	"v.io/x/lib/vlog"
)

// Printf logs at normal verbosity.
func Printf(format string, args ...interface{}) { log.Printf(format, args...) }

// Debugf logs at debug verbosity.
func Debugf(format string, args ...interface{}) { log.Debug.Printf(format, args...) }

// Errorf logs an error without aborting the run.
func Errorf(format string, args ...interface{}) { log.Error.Printf(format, args...) }

// Fatalf logs and aborts the process. Reserved for whole-run-fatal error
// kinds surfaced at the cmd/volstitch boundary.
func Fatalf(format string, args ...interface{}) { log.Fatalf(format, args...) }

// Warningf reports a non-fatal but noteworthy condition, such as the MST
// routing through a non-stitchable tile (spec.md §4.4). Routed through
// vlog rather than grailbio/base/log so it surfaces even when the rest of
// the run is quiet, matching how the teacher reserves vlog.Fatalf for
// conditions that must never be silently swallowed.
func Warningf(format string, args ...interface{}) { vlog.Infof("WARNING: "+format, args...) }
