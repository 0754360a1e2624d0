package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"io/ioutil"
	"math"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/nimbus-imaging/volstitch/stiterr"
)

// S3Store reads tiles from objects in a single S3 bucket, one object per
// tile at Prefix/row_col.raw, in the same raw float32 layout as
// LocalStore. Grounded on the session-construction pattern used in the
// teacher's encoding/bamprovider tests for remote-backed providers.
type S3Store struct {
	Bucket string
	Prefix string
	Dims   Dims

	sess *session.Session
	svc  *s3.S3
}

// NewS3Store creates an S3Store using the default AWS credential chain
// (environment, shared config, EC2/ECS role), matching
// aws-sdk-go/aws/session.NewSession()'s zero-config convention.
func NewS3Store(bucket, prefix string, dims Dims) (*S3Store, error) {
	sess, err := session.NewSession(&aws.Config{})
	if err != nil {
		return nil, stiterr.E(stiterr.ReadFailure, err, "create aws session")
	}
	return &S3Store{Bucket: bucket, Prefix: prefix, Dims: dims, sess: sess, svc: s3.New(sess)}, nil
}

func (s *S3Store) key(row, col int) string {
	return fmt.Sprintf("%s/%d_%d.raw", s.Prefix, row, col)
}

// Dimensions implements TileStore.
func (s *S3Store) Dimensions(row, col int) (int, int, int, error) {
	return s.Dims.Height, s.Dims.Width, s.Dims.Depth, nil
}

// ReadSlab implements TileStore by delegating to ReadSlabContext with a
// background context, so S3Store satisfies the plain TileStore interface
// for callers that don't need cancellation.
func (s *S3Store) ReadSlab(row, col, v0, v1, h0, h1, d0, d1 int) ([]float64, error) {
	return s.ReadSlabContext(context.Background(), row, col, v0, v1, h0, h1, d0, d1)
}

// ReadSlabContext implements storage.ContextTileStore. Each requested
// row of the window is a separate ranged GetObject call; the pairwise
// driver's slab cache (slabcache) serves a repeat request for the same
// tile, window and depth range without another read.
func (s *S3Store) ReadSlabContext(ctx context.Context, row, col, v0, v1, h0, h1, d0, d1 int) ([]float64, error) {
	if v0 < 0 || h0 < 0 || d0 < 0 || v1 > s.Dims.Height || h1 > s.Dims.Width || d1 > s.Dims.Depth || v0 >= v1 || h0 >= h1 || d0 >= d1 {
		return nil, stiterr.E(stiterr.InvalidInput, "ReadSlabContext: window out of bounds for tile", row, col)
	}
	planeSamples := s.Dims.Height * s.Dims.Width
	rowWidth := h1 - h0
	out := make([]float64, (d1-d0)*(v1-v0)*rowWidth)
	key := s.key(row, col)
	oi := 0
	for d := d0; d < d1; d++ {
		for v := v0; v < v1; v++ {
			start := int64(d*planeSamples+v*s.Dims.Width+h0) * 4
			end := start + int64(rowWidth*4) - 1
			rng := fmt.Sprintf("bytes=%d-%d", start, end)
			resp, err := s.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
				Bucket: aws.String(s.Bucket),
				Key:    aws.String(key),
				Range:  aws.String(rng),
			})
			if err != nil {
				return nil, stiterr.E(stiterr.ReadFailure, err, "get object", key, rng)
			}
			buf, err := ioutil.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, stiterr.E(stiterr.ReadFailure, err, "read object body", key)
			}
			if len(buf) != rowWidth*4 {
				return nil, stiterr.E(stiterr.ReadFailure, "short read", key, rng)
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
