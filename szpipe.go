// Package szpipe is an error-bounded lossy compressor for dense float32 and
// float64 arrays of up to three dimensions.
//
// Every reconstructed element differs from its original by at most the
// configured error bound. Compression runs as an ordered sequence of data
// parallel kernels: a predictor quantizes each element against its
// neighbors, unpredictable elements are kept as sparse outliers, and the
// resulting error-control codes are entropy coded with a chunked canonical
// Huffman coder or, for degenerate histograms, a byte-aligned fallback.
//
// # Core Features
//
//   - Absolute or value-range relative error bounds
//   - Lorenzo and cubic spline predictors
//   - Vector and CSR outlier encodings
//   - Narrow (32-bit) and wide (64-bit) Huffman metadata
//   - Zstd, S2 or LZ4 back ends for the fallback coder
//   - Self-describing 88-byte header with an xxHash64 checksum
//
// # Basic Usage
//
//	shape := format.Shape3D(256, 256, 64)
//	artifact, _ := szpipe.Compress(field, shape, config.WithErrorBound(1e-3, format.BoundRel))
//
//	restored, shape, _ := szpipe.Decompress[float32](artifact)
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the pipeline
// package. For instance reuse, asynchronous streams, memory limits or stage
// timings, use the pipeline package directly.
package szpipe

import (
	"bytes"

	"github.com/arloliu/szpipe/config"
	"github.com/arloliu/szpipe/format"
	"github.com/arloliu/szpipe/pipeline"
	"github.com/arloliu/szpipe/section"
)

// Compress compresses data, laid out as shape with X varying fastest, and
// returns an artifact owned by the caller.
//
// Parameters:
//   - data: Input array, len(data) must equal shape.Len()
//   - shape: Array extent
//   - opts: Context options; the defaults are an absolute bound of 1e-4,
//     the Lorenzo predictor and narrow Huffman metadata
//
// Returns:
//   - []byte: The compressed artifact
//   - error: Configuration, shape or kernel error
func Compress[T format.Float](data []T, shape format.Shape, opts ...config.Option) ([]byte, error) {
	ctx, err := config.NewContext(shape, opts...)
	if err != nil {
		return nil, err
	}

	c := pipeline.New[T]()
	defer c.Destroy()

	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	artifact, err := c.Compress(data, nil)
	if err != nil {
		return nil, err
	}

	return bytes.Clone(artifact), nil
}

// Decompress reconstructs an artifact produced by Compress or by a
// pipeline.Compressor. T must match the element type recorded in the header.
//
// Returns:
//   - []T: The reconstructed array
//   - format.Shape: The array extent recorded in the header
//   - error: Header, integrity or decode error
func Decompress[T format.Float](artifact []byte) ([]T, format.Shape, error) {
	h, err := section.ParseHeader(artifact)
	if err != nil {
		return nil, format.Shape{}, err
	}

	c := pipeline.New[T]()
	defer c.Destroy()

	if err := c.InitFromHeader(&h); err != nil {
		return nil, format.Shape{}, err
	}

	out := make([]T, h.Len())
	if err := c.Decompress(&h, artifact, out, nil); err != nil {
		return nil, format.Shape{}, err
	}

	return out, h.Shape, nil
}

// ParseHeader parses and validates the header at the start of artifact. It
// does not verify the sub-stream layout or the checksum.
func ParseHeader(artifact []byte) (section.Header, error) {
	return section.ParseHeader(artifact)
}
