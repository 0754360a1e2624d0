// Package dedup deduplicates edge candidate displacements when merging
// candidate lists recovered from a spool file with ones computed fresh
// in the same run (reprocessing resilience, SPEC_FULL.md's domain-stack
// notes). It is grounded on
// github.com/grailbio/bio/fusion/postprocess.go's
// groupCandidatesByGenePair: a highwayhash digest of a normalized key
// buckets candidates into equivalence classes, generalized here from
// "gene pair" to "edge index + integer offset".
package dedup

import (
	"encoding/binary"

	"github.com/minio/highwayhash"

	"github.com/nimbus-imaging/volstitch/dispgraph"
	"github.com/nimbus-imaging/volstitch/volpb"
)

type hashKey = [highwayhash.Size]uint8

var zeroSeed = hashKey{}

// key fingerprints an (edge index, coordinate) pair: two candidates with
// the same edge and the same integer offset are considered duplicates
// regardless of which run (spooled or fresh) produced them.
func key(idx int, coord volpb.Coord3) hashKey {
	var buf [32]uint8
	binary.LittleEndian.PutUint64(buf[0:8], uint64(idx))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(coord.V))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(coord.H))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(coord.D))
	return highwayhash.Sum(buf[:], zeroSeed[:])
}

// Merge appends every candidate from fresh and spooled into graph,
// skipping spooled candidates that exactly duplicate one already added
// (by edge + integer offset) from fresh. Ties are broken in favor of the
// freshly computed candidate, since it reflects the current run's image
// data and parameters rather than a possibly-stale spool file.
func Merge(graph *dispgraph.Graph, fresh map[dispgraph.Edge][]volpb.Displacement3, spooled map[dispgraph.Edge][]volpb.Displacement3) {
	seen := map[hashKey]bool{}

	for e, cands := range fresh {
		idx := graph.Index(e)
		for _, d := range cands {
			seen[key(idx, d.Coord)] = true
			graph.AddCandidate(e, d)
		}
	}
	for e, cands := range spooled {
		idx := graph.Index(e)
		for _, d := range cands {
			k := key(idx, d.Coord)
			if seen[k] {
				continue
			}
			seen[k] = true
			graph.AddCandidate(e, d)
		}
	}
}
