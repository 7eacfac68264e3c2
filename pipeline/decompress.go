package pipeline

import (
	"fmt"
	"time"

	"github.com/arloliu/szpipe/device"
	"github.com/arloliu/szpipe/entropy"
	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/format"
	"github.com/arloliu/szpipe/section"
)

// Decompress reconstructs the artifact described by h into out.
//
// h may be nil, in which case it is parsed from the front of artifact. The
// header is checked against the artifact before any kernel is launched. The
// decode kernels are then enqueued on stream and Decompress returns; the
// caller must keep artifact and out alive and call stream.Synchronize to
// collect the result. A nil stream runs inline and returns the result
// directly.
func (c *Compressor[T]) Decompress(h *section.Header, artifact []byte, out []T, stream *device.Stream) error {
	if err := c.checkReady(stateDecompress); err != nil {
		return err
	}

	start := time.Now()
	if h == nil {
		parsed, err := section.ParseHeader(artifact)
		if err != nil {
			return err
		}
		h = &parsed
	}
	if err := c.checkCompatible(h, len(out)); err != nil {
		return err
	}
	if err := h.Validate(artifact); err != nil {
		return err
	}

	var codec entropy.Codec = c.primary
	if h.Flag.UsesFallback() {
		fb, err := c.acquireFallback(h.Flag.FallbackCompression())
		if err != nil {
			return err
		}
		codec = fb
	}

	c.times = c.times[:0]
	c.record(StageValidate, start)

	s := c.stream(stream)
	workers := s.Workers()
	radius := int(h.Radius)
	eb := h.ErrorBound

	outliers := h.Stream(artifact, section.StreamOutliers)
	table := h.Stream(artifact, section.StreamTable)
	bits := h.Stream(artifact, section.StreamBits)

	s.Launch(StageSparseDecode, c.timed(StageSparseDecode, func() error {
		return c.sparse.Decode(outliers, c.pred.OutlierSpace(), &c.outliers)
	}))
	s.Launch(StageEntropyDecode, c.timed(StageEntropyDecode, func() error {
		return codec.Decode(table, bits, c.codes, workers)
	}))
	s.Launch(StageReconstruct, c.timed(StageReconstruct, func() error {
		return c.pred.Reconstruct(c.codes, &c.outliers, eb, radius, out, workers)
	}))

	if stream != nil {
		return nil
	}

	if err := s.Synchronize(); err != nil {
		return err
	}
	c.logDebug("decompressed", c.times.Attrs()...)

	return nil
}

// checkCompatible verifies that h describes artifacts this instance was
// allocated for.
func (c *Compressor[T]) checkCompatible(h *section.Header, outLen int) error {
	if err := h.Flag.Validate(); err != nil {
		return err
	}
	if want := format.ElementTypeOf[T](); h.ElemType != want {
		return fmt.Errorf("%w: header holds %s, instance decodes %s", errs.ErrTypeMismatch, h.ElemType, want)
	}
	if h.Shape.Normalize() != c.header.Shape || outLen != c.n {
		return fmt.Errorf("%w: header shape %s, output %d, instance %s", errs.ErrShapeMismatch, h.Shape, outLen, c.header.Shape)
	}
	if h.Radius != c.header.Radius ||
		h.Flag.Predictor() != c.header.Flag.Predictor() ||
		h.Flag.Sparse() != c.header.Flag.Sparse() ||
		h.Flag.Codec() != c.header.Flag.Codec() ||
		h.Flag.IsBigEndian() != c.header.Flag.IsBigEndian() {
		return fmt.Errorf("%w: header strategy differs from the one the instance was initialized with", errs.ErrWrongState)
	}

	return nil
}
