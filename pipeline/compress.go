package pipeline

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/arloliu/szpipe/device"
	"github.com/arloliu/szpipe/entropy"
	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/format"
	"github.com/arloliu/szpipe/internal/hash"
	"github.com/arloliu/szpipe/section"
)

// Compress compresses origin, which must hold DataLen elements, on stream.
// A nil stream runs every kernel inline.
//
// The returned artifact is a view of the instance's output buffer. It stays
// valid until the next Compress, ClearBuffer or Destroy; copy it to keep it
// longer.
func (c *Compressor[T]) Compress(origin []T, stream *device.Stream) ([]byte, error) {
	if err := c.checkReady(stateCompress); err != nil {
		return nil, err
	}
	if len(origin) != c.n {
		return nil, fmt.Errorf("%w: %d elements, instance holds %d", errs.ErrShapeMismatch, len(origin), c.n)
	}

	s := c.stream(stream)
	workers := s.Workers()
	radius := int(c.header.Radius)
	c.times = c.times[:0]

	eb := c.ctx.ErrorBound
	if c.ctx.BoundMode == format.BoundRel {
		s.Launch(StageRange, c.timed(StageRange, func() error {
			lo, hi := valueRange(origin, workers)
			if r := hi - lo; r > 0 && !math.IsInf(r, 0) {
				eb *= r
			}

			return nil
		}))
	}

	var outlierStream []byte
	s.Launch(StagePredict, c.timed(StagePredict, func() error {
		return c.pred.Construct(origin, eb, radius, c.codes, &c.outliers, workers)
	}))
	s.Launch(StageSparseEncode, c.timed(StageSparseEncode, func() error {
		var err error
		outlierStream, err = c.sparse.Encode(c.reserved[section.HeaderSize:section.HeaderSize], &c.outliers, c.pred.OutlierSpace())

		return err
	}))
	s.Launch(StageHistogram, c.timed(StageHistogram, func() error {
		return entropy.Histogram(c.codes, c.freq, workers)
	}))
	if err := s.Synchronize(); err != nil {
		return nil, err
	}

	codec, useFallback, err := c.selectCodec()
	if err != nil {
		return nil, err
	}

	var encoded entropy.Encoded
	s.Launch(StageEncode, c.timed(StageEncode, func() error {
		var err error
		encoded, err = codec.Encode(c.codes, workers)

		return err
	}))
	if err := s.Synchronize(); err != nil {
		return nil, err
	}

	start := time.Now()
	artifact, err := c.collect(outlierStream, encoded, useFallback, eb)
	if err != nil {
		return nil, err
	}
	c.record(StageCollect, start)

	c.logDebug("compressed",
		append([]any{
			"bytes", len(artifact),
			"ratio", float64(c.n*format.ElementTypeOf[T]().Size()) / float64(len(artifact)),
			"outliers", c.outliers.Len(),
			"fallback", useFallback,
		}, c.times.Attrs()...)...,
	)

	return artifact, nil
}

// selectCodec decides between the primary codec and the fallback from the
// histogram and, for the primary, builds its code. A codeword overflow is
// absorbed by switching to the fallback.
func (c *Compressor[T]) selectCodec() (entropy.Codec, bool, error) {
	defer c.record(StageDecide, time.Now())

	d := entropy.Decide(c.freq, c.n, c.ctx.FallbackThreshold)
	reason := "dominant symbol"
	if !d.UseFallback {
		err := c.primary.Prepare(c.freq)
		switch {
		case err == nil:
			c.logDebug("codec decision",
				"codec", c.primary.Type().String(),
				"top_symbol", d.Symbol,
				"top_share_permille", d.Permille,
			)

			return c.primary, false, nil
		case errors.Is(err, errs.ErrCodewordOverflow):
			reason = "codeword overflow"
		default:
			return nil, false, err
		}
	}

	fb, err := c.acquireFallback(c.ctx.FallbackCompression)
	if err != nil {
		return nil, false, err
	}
	c.logDebug("codec decision",
		"codec", fb.Type().String(),
		"backend", fb.Backend().String(),
		"reason", reason,
		"top_symbol", d.Symbol,
		"top_share_permille", d.Permille,
	)

	return fb, true, nil
}

// collect lays the sub-streams out after the header in the reserved buffer,
// fills the header and writes it in front.
func (c *Compressor[T]) collect(outliers []byte, enc entropy.Encoded, useFallback bool, eb float64) ([]byte, error) {
	buf := c.reserved
	total := section.HeaderSize + len(outliers) + enc.Len()
	if total > len(buf) {
		return nil, fmt.Errorf("%w: artifact of %d bytes exceeds reserved %d", errs.ErrOutOfDeviceMemory, total, len(buf))
	}

	off := section.HeaderSize
	parts := [section.NumStreams][]byte{outliers, enc.Table, enc.Bits}
	for i, p := range parts {
		copy(buf[off:], p)
		c.header.Streams[i] = section.StreamEntry{Offset: uint64(off), Length: uint64(len(p))} //nolint: gosec
		off += len(p)
	}

	c.header.Flag.SetFallback(useFallback)
	c.header.ErrorBound = eb
	c.header.Checksum = hash.Checksum(buf[section.HeaderSize:total])
	c.header.PutBytes(buf[:section.HeaderSize])

	return buf[:total:total], nil
}

// valueRange returns the minimum and maximum of data, ignoring NaNs. It
// returns (0, 0) when data holds no comparable value.
func valueRange[T format.Float](data []T, workers int) (float64, float64) {
	const grain = 1 << 16

	type span struct {
		lo, hi float64
		ok     bool
	}
	parts := make([]span, device.Chunks(len(data), grain))

	device.ParallelFor(workers, len(data), grain, func(lo, hi int) {
		p := span{lo: math.Inf(1), hi: math.Inf(-1)}
		for _, v := range data[lo:hi] {
			f := float64(v)
			if math.IsNaN(f) {
				continue
			}
			p.lo = min(p.lo, f)
			p.hi = max(p.hi, f)
			p.ok = true
		}
		parts[lo/grain] = p
	})

	lo, hi := math.Inf(1), math.Inf(-1)
	found := false
	for _, p := range parts {
		if p.ok {
			lo, hi, found = min(lo, p.lo), max(hi, p.hi), true
		}
	}
	if !found {
		return 0, 0
	}

	return lo, hi
}
