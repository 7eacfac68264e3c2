package pipeline

import (
	"bytes"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/szpipe/config"
	"github.com/arloliu/szpipe/device"
	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/format"
	"github.com/arloliu/szpipe/internal/hash"
	"github.com/arloliu/szpipe/section"
)

func smoothField[T format.Float](shape format.Shape, seed uint64) []T {
	rng := rand.New(rand.NewPCG(seed, seed))
	out := make([]T, shape.Len())
	for z := range shape.Z {
		for y := range shape.Y {
			for x := range shape.X {
				v := 20*math.Sin(float64(x)/9)*math.Cos(float64(y)/7) + 4*math.Sin(float64(z)/4)
				out[shape.Index(x, y, z)] = T(v + rng.NormFloat64()*0.05)
			}
		}
	}

	return out
}

func requireWithinBound[T format.Float](t *testing.T, want, got []T, eb float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		w, g := float64(want[i]), float64(got[i])
		if math.IsNaN(w) {
			require.True(t, math.IsNaN(g), "element %d: want NaN got %g", i, g)
			continue
		}
		require.LessOrEqual(t, math.Abs(w-g), eb, "element %d: want %g got %g", i, w, g)
	}
}

func newCompressor[T format.Float](t testing.TB, ctx *config.Context, opts ...Option) *Compressor[T] {
	t.Helper()
	c := New[T](opts...)
	require.NoError(t, c.Init(ctx))
	t.Cleanup(c.Destroy)

	return c
}

// decompressFresh decodes artifact with an instance built from its header
// alone.
func decompressFresh[T format.Float](t testing.TB, artifact []byte) []T {
	t.Helper()

	h, err := section.ParseHeader(artifact)
	require.NoError(t, err)

	d := New[T]()
	defer d.Destroy()
	require.NoError(t, d.InitFromHeader(&h))

	out := make([]T, h.Len())
	require.NoError(t, d.Decompress(&h, artifact, out, nil))

	return out
}

func mustContext(t testing.TB, shape format.Shape, opts ...config.Option) *config.Context {
	t.Helper()
	ctx, err := config.NewContext(shape, opts...)
	require.NoError(t, err)

	return ctx
}

func testRoundTrip[T format.Float](t *testing.T) {
	shape := format.Shape3D(33, 21, 9)
	data := smoothField[T](shape, 11)

	for _, pred := range []format.PredictorType{format.PredictorLorenzo, format.PredictorSpline3} {
		for _, sparse := range []format.SparseType{format.SparseVector, format.SparseCSR} {
			for _, codec := range []format.CodecType{format.CodecHuffman32, format.CodecHuffman64} {
				name := pred.String() + "/" + sparse.String() + "/" + codec.String()
				t.Run(name, func(t *testing.T) {
					const eb = 1e-2
					ctx := mustContext(t, shape,
						config.WithErrorBound(eb, format.BoundAbs),
						config.WithPredictor(pred),
						config.WithSparse(sparse),
						config.WithCodec(codec),
					)
					c := newCompressor[T](t, ctx)

					artifact, err := c.Compress(data, nil)
					require.NoError(t, err)
					require.Less(t, len(artifact), len(data)*format.ElementTypeOf[T]().Size())

					requireWithinBound(t, data, decompressFresh[T](t, artifact), eb)
				})
			}
		}
	}
}

func TestRoundTrip(t *testing.T) {
	t.Run("float32", testRoundTrip[float32])
	t.Run("float64", testRoundTrip[float64])
}

func TestRoundTrip_Outliers(t *testing.T) {
	shape := format.Shape2D(50, 40)
	data := smoothField[float64](shape, 5)
	for i := 0; i < len(data); i += 97 {
		data[i] = 1e5 * float64(i%3-1)
	}

	for _, pred := range []format.PredictorType{format.PredictorLorenzo, format.PredictorSpline3} {
		t.Run(pred.String(), func(t *testing.T) {
			c := newCompressor[float64](t, mustContext(t, shape,
				config.WithErrorBound(1e-3, format.BoundAbs),
				config.WithPredictor(pred),
				config.WithSparse(format.SparseCSR),
			))
			artifact, err := c.Compress(data, nil)
			require.NoError(t, err)

			h, err := c.ExportHeader()
			require.NoError(t, err)
			require.Positive(t, h.Streams[section.StreamOutliers].Length)

			requireWithinBound(t, data, decompressFresh[float64](t, artifact), 1e-3)
		})
	}
}

func TestRelativeBound(t *testing.T) {
	shape := format.Shape1D(4096)
	data := smoothField[float32](shape, 2)

	lo, hi := valueRange(data, 4)
	c := newCompressor[float32](t, mustContext(t, shape, config.WithErrorBound(1e-4, format.BoundRel)))
	artifact, err := c.Compress(data, nil)
	require.NoError(t, err)

	h, err := section.ParseHeader(artifact)
	require.NoError(t, err)
	require.Equal(t, format.BoundRel, h.BoundMode)
	require.InDelta(t, 1e-4*(hi-lo), h.ErrorBound, 1e-12)

	requireWithinBound(t, data, decompressFresh[float32](t, artifact), h.ErrorBound)
}

func TestValueRange(t *testing.T) {
	lo, hi := valueRange([]float64{3, math.NaN(), -2, 7}, 2)
	require.Equal(t, -2.0, lo)
	require.Equal(t, 7.0, hi)

	lo, hi = valueRange([]float32{float32(math.NaN())}, 2)
	require.Zero(t, lo)
	require.Zero(t, hi)

	data := smoothField[float64](format.Shape1D(300000), 1)
	data[250000] = 1e9
	_, hi = valueRange(data, 8)
	require.Equal(t, 1e9, hi)
}

func TestFallback_SkewedHistogram(t *testing.T) {
	shape := format.Shape1D(10000)
	data := make([]float64, shape.Len())
	data[100], data[5000], data[9000] = 1, -1, 0.5

	ctx := mustContext(t, shape, config.WithErrorBound(1e-2, format.BoundAbs))
	c := newCompressor[float64](t, ctx)

	artifact, err := c.Compress(data, nil)
	require.NoError(t, err)

	h, err := c.ExportHeader()
	require.NoError(t, err)
	require.True(t, h.Flag.UsesFallback())
	require.Zero(t, h.Streams[section.StreamTable].Length)
	require.Equal(t, format.CompressionZstd, h.Flag.FallbackCompression())

	requireWithinBound(t, data, decompressFresh[float64](t, artifact), 1e-2)

	t.Run("threshold disabled", func(t *testing.T) {
		ctx := mustContext(t, shape, config.WithErrorBound(1e-2, format.BoundAbs), config.WithFallbackThreshold(0))
		c := newCompressor[float64](t, ctx)
		artifact, err := c.Compress(data, nil)
		require.NoError(t, err)

		h, err := section.ParseHeader(artifact)
		require.NoError(t, err)
		require.False(t, h.Flag.UsesFallback())
		requireWithinBound(t, data, decompressFresh[float64](t, artifact), 1e-2)
	})

	t.Run("backends", func(t *testing.T) {
		for _, comp := range []format.CompressionType{format.CompressionNone, format.CompressionS2, format.CompressionLZ4} {
			ctx := mustContext(t, shape, config.WithErrorBound(1e-2, format.BoundAbs), config.WithFallbackCompression(comp))
			c := newCompressor[float64](t, ctx)
			artifact, err := c.Compress(data, nil)
			require.NoError(t, err)

			h, err := section.ParseHeader(artifact)
			require.NoError(t, err)
			require.True(t, h.Flag.UsesFallback())
			require.Equal(t, comp, h.Flag.FallbackCompression())
			requireWithinBound(t, data, decompressFresh[float64](t, artifact), 1e-2)
		}
	})
}

// fibonacciField returns integer-valued data whose Lorenzo codes follow a
// Fibonacci histogram over 27 symbols, so the Huffman code is 26 bits deep.
func fibonacciField() []float64 {
	var deltas []float64
	a, b := 1, 1
	for k := 1; k <= 27; k++ {
		for range a {
			deltas = append(deltas, float64(k))
		}
		a, b = b, a+b
	}

	rng := rand.New(rand.NewPCG(8, 8))
	rng.Shuffle(len(deltas), func(i, j int) { deltas[i], deltas[j] = deltas[j], deltas[i] })

	p := 0.0
	for i, d := range deltas {
		p += d
		deltas[i] = p
	}

	return deltas
}

func TestFallback_CodewordOverflow(t *testing.T) {
	data := fibonacciField()
	shape := format.Shape1D(len(data))

	tests := []struct {
		codec    format.CodecType
		fallback bool
	}{
		{format.CodecHuffman32, true},
		{format.CodecHuffman64, false},
	}

	for _, tt := range tests {
		t.Run(tt.codec.String(), func(t *testing.T) {
			ctx := mustContext(t, shape, config.WithErrorBound(0.5, format.BoundAbs), config.WithCodec(tt.codec))
			c := newCompressor[float64](t, ctx)

			artifact, err := c.Compress(data, nil)
			require.NoError(t, err)

			h, err := section.ParseHeader(artifact)
			require.NoError(t, err)
			require.Equal(t, tt.fallback, h.Flag.UsesFallback())
			require.Equal(t, tt.codec, h.Flag.Codec())

			out := decompressFresh[float64](t, artifact)
			require.Equal(t, data, out)
		})
	}
}

func TestBufferReuse(t *testing.T) {
	shape := format.Shape2D(64, 64)
	a := smoothField[float32](shape, 1)
	b := smoothField[float32](shape, 2)

	c := newCompressor[float32](t, mustContext(t, shape, config.WithPredictor(format.PredictorSpline3)))

	first, err := c.Compress(a, nil)
	require.NoError(t, err)
	want := bytes.Clone(first)
	inUse := c.Allocator().InUse()

	again, err := c.Compress(a, nil)
	require.NoError(t, err)
	require.Equal(t, want, again)

	reused, err := c.Compress(b, nil)
	require.NoError(t, err)
	fresh := newCompressor[float32](t, mustContext(t, shape, config.WithPredictor(format.PredictorSpline3)))
	wantB, err := fresh.Compress(b, nil)
	require.NoError(t, err)
	require.Equal(t, wantB, reused)

	c.ClearBuffer()
	afterClear, err := c.Compress(a, nil)
	require.NoError(t, err)
	require.Equal(t, want, afterClear)
	require.Equal(t, inUse, c.Allocator().InUse())

	// A decompressor is reusable across artifacts too.
	h, err := section.ParseHeader(want)
	require.NoError(t, err)
	d := New[float32]()
	defer d.Destroy()
	require.NoError(t, d.InitFromHeader(&h))

	bArtifact, err := c.Compress(b, nil)
	require.NoError(t, err)
	bArtifact = bytes.Clone(bArtifact)

	out := make([]float32, shape.Len())
	for range 2 {
		require.NoError(t, d.Decompress(nil, want, out, nil))
		requireWithinBound(t, a, out, 1e-4)
		require.NoError(t, d.Decompress(nil, bArtifact, out, nil))
		requireWithinBound(t, b, out, 1e-4)
		d.ClearBuffer()
	}
}

func TestOffsetConsistency(t *testing.T) {
	shape := format.Shape3D(16, 16, 16)
	data := smoothField[float64](shape, 4)
	data[7] = 1e7

	c := newCompressor[float64](t, mustContext(t, shape))
	artifact, err := c.Compress(data, nil)
	require.NoError(t, err)

	h, err := c.ExportHeader()
	require.NoError(t, err)
	parsed, err := section.ParseHeader(artifact)
	require.NoError(t, err)
	require.Equal(t, h, parsed)
	require.Equal(t, h.Bytes(), artifact[:section.HeaderSize])

	off := uint64(section.HeaderSize)
	for _, s := range h.Streams {
		require.Equal(t, off, s.Offset)
		off += s.Length
	}
	require.Equal(t, uint64(len(artifact)), off)
	require.Equal(t, h.TotalSize(), off)
	require.Equal(t, hash.Checksum(artifact[section.HeaderSize:]), h.Checksum)
}

func TestSingleZeroElement(t *testing.T) {
	for _, pred := range []format.PredictorType{format.PredictorLorenzo, format.PredictorSpline3} {
		t.Run(pred.String(), func(t *testing.T) {
			shape := format.Shape3D(1, 1, 1)
			c := newCompressor[float32](t, mustContext(t, shape, config.WithPredictor(pred)))

			artifact, err := c.Compress([]float32{0}, nil)
			require.NoError(t, err)
			require.Equal(t, []float32{0}, decompressFresh[float32](t, artifact))
		})
	}
}

func TestBigEndian(t *testing.T) {
	shape := format.Shape2D(30, 30)
	data := smoothField[float64](shape, 9)

	c := newCompressor[float64](t, mustContext(t, shape,
		config.WithBigEndian(),
		config.WithCodec(format.CodecHuffman64),
		config.WithSparse(format.SparseCSR),
	))
	artifact, err := c.Compress(data, nil)
	require.NoError(t, err)

	h, err := section.ParseHeader(artifact)
	require.NoError(t, err)
	require.True(t, h.Flag.IsBigEndian())
	requireWithinBound(t, data, decompressFresh[float64](t, artifact), 1e-4)
}

func TestLifecycle(t *testing.T) {
	shape := format.Shape1D(100)
	data := smoothField[float32](shape, 1)
	out := make([]float32, 100)

	c := New[float32]()
	c.Destroy()
	c.Destroy()

	_, err := c.Compress(data, nil)
	require.ErrorIs(t, err, errs.ErrNotInitialized)
	require.ErrorIs(t, c.Decompress(nil, nil, out, nil), errs.ErrNotInitialized)
	_, err = c.ExportHeader()
	require.ErrorIs(t, err, errs.ErrNotInitialized)
	require.ErrorIs(t, c.Init(nil), errs.ErrInvalidConfig)

	require.NoError(t, c.Init(mustContext(t, shape)))
	require.Equal(t, 100, c.DataLen())
	require.ErrorIs(t, c.Init(mustContext(t, shape)), errs.ErrWrongState)
	require.ErrorIs(t, c.Decompress(nil, nil, out, nil), errs.ErrWrongState)

	_, err = c.Compress(data[:99], nil)
	require.ErrorIs(t, err, errs.ErrShapeMismatch)

	artifact, err := c.Compress(data, nil)
	require.NoError(t, err)
	artifact = bytes.Clone(artifact)

	c.Destroy()
	require.Zero(t, c.Allocator().InUse())
	require.Zero(t, c.DataLen())
	c.Destroy()

	h, err := section.ParseHeader(artifact)
	require.NoError(t, err)
	require.NoError(t, c.InitFromHeader(&h))
	_, err = c.Compress(data, nil)
	require.ErrorIs(t, err, errs.ErrWrongState)
	require.ErrorIs(t, c.Decompress(&h, artifact, out[:50], nil), errs.ErrShapeMismatch)
	require.NoError(t, c.Decompress(&h, artifact, out, nil))
	requireWithinBound(t, data, out, 1e-4)

	wrongType := New[float64]()
	require.ErrorIs(t, wrongType.InitFromHeader(&h), errs.ErrTypeMismatch)
	wrongType.Destroy()

	c.Destroy()
	require.Zero(t, c.Allocator().InUse())
}

func TestContextCopiedAtInit(t *testing.T) {
	shape := format.Shape2D(32, 32)
	data := smoothField[float64](shape, 4)

	ctx := mustContext(t, shape, config.WithErrorBound(1e-2, format.BoundAbs))
	c := newCompressor[float64](t, ctx)
	ctx.ErrorBound = 1e-6
	ctx.BoundMode = format.BoundRel
	ctx.FallbackThreshold = 1

	artifact, err := c.Compress(data, nil)
	require.NoError(t, err)

	h, err := section.ParseHeader(artifact)
	require.NoError(t, err)
	require.Equal(t, 1e-2, h.ErrorBound)
	require.Equal(t, format.BoundAbs, h.BoundMode)

	fresh := newCompressor[float64](t, mustContext(t, shape, config.WithErrorBound(1e-2, format.BoundAbs)))
	want, err := fresh.Compress(data, nil)
	require.NoError(t, err)
	require.Equal(t, want, artifact)
}

func TestDecompress_HeaderMismatch(t *testing.T) {
	shape := format.Shape1D(256)
	data := smoothField[float32](shape, 3)

	lorenzo := newCompressor[float32](t, mustContext(t, shape))
	artifact, err := lorenzo.Compress(data, nil)
	require.NoError(t, err)
	artifact = bytes.Clone(artifact)

	spline := newCompressor[float32](t, mustContext(t, shape, config.WithPredictor(format.PredictorSpline3)))
	other, err := spline.Compress(data, nil)
	require.NoError(t, err)

	h, err := section.ParseHeader(artifact)
	require.NoError(t, err)
	d := New[float32]()
	defer d.Destroy()
	require.NoError(t, d.InitFromHeader(&h))

	out := make([]float32, shape.Len())
	require.ErrorIs(t, d.Decompress(nil, other, out, nil), errs.ErrWrongState)
	require.NoError(t, d.Decompress(nil, artifact, out, nil))
}

func TestDecompress_Corrupt(t *testing.T) {
	shape := format.Shape2D(40, 40)
	data := smoothField[float64](shape, 6)

	c := newCompressor[float64](t, mustContext(t, shape))
	artifact, err := c.Compress(data, nil)
	require.NoError(t, err)
	artifact = bytes.Clone(artifact)

	h, err := section.ParseHeader(artifact)
	require.NoError(t, err)
	d := New[float64]()
	defer d.Destroy()
	require.NoError(t, d.InitFromHeader(&h))
	out := make([]float64, shape.Len())

	t.Run("checksum", func(t *testing.T) {
		bad := bytes.Clone(artifact)
		bad[len(bad)-1] ^= 0x40
		require.ErrorIs(t, d.Decompress(nil, bad, out, nil), errs.ErrChecksumMismatch)
	})

	t.Run("truncated", func(t *testing.T) {
		require.ErrorIs(t, d.Decompress(nil, artifact[:len(artifact)-1], out, nil), errs.ErrOffsetOutOfRange)
		require.ErrorIs(t, d.Decompress(nil, artifact[:10], out, nil), errs.ErrInvalidHeaderSize)
	})

	t.Run("magic", func(t *testing.T) {
		bad := bytes.Clone(artifact)
		bad[1] ^= 0xFF
		require.ErrorIs(t, d.Decompress(nil, bad, out, nil), errs.ErrInvalidMagicNumber)
	})

	t.Run("overlapping streams", func(t *testing.T) {
		bad := h
		bad.Streams[section.StreamBits].Offset = bad.Streams[section.StreamTable].Offset
		require.ErrorIs(t, d.Decompress(&bad, artifact, out, nil), errs.ErrOverlappingStreams)
	})

	t.Run("bitstream with valid checksum", func(t *testing.T) {
		bad := bytes.Clone(artifact)
		bits := h.Streams[section.StreamBits]
		bad[bits.Offset] ^= 0xFF // first byte of the symbol count
		bh := h
		bh.Checksum = hash.Checksum(bad[section.HeaderSize:])
		bh.PutBytes(bad)

		stream := device.NewStream()
		defer stream.Close()
		require.NoError(t, d.Decompress(nil, bad, out, stream))
		err := stream.Synchronize()
		require.ErrorIs(t, err, errs.ErrCorruptBitstream)
		require.ErrorContains(t, err, StageEntropyDecode)

		// The stream and the instance stay usable.
		require.NoError(t, d.Decompress(nil, artifact, out, stream))
		require.NoError(t, stream.Synchronize())
		requireWithinBound(t, data, out, 1e-4)
	})
}

func TestMemoryLimit(t *testing.T) {
	shape := format.Shape2D(128, 128)
	data := make([]float32, shape.Len())
	ctx := mustContext(t, shape)

	t.Run("init", func(t *testing.T) {
		c := New[float32](WithMemoryLimit(4096))
		err := c.Init(ctx)
		require.ErrorIs(t, err, errs.ErrOutOfDeviceMemory)

		_, err = c.Compress(data, nil)
		require.ErrorIs(t, err, errs.ErrInstanceUnusable)
		require.ErrorIs(t, c.Init(ctx), errs.ErrInstanceUnusable)

		c.Destroy()
		require.Zero(t, c.Allocator().InUse())
		require.ErrorIs(t, c.Init(ctx), errs.ErrOutOfDeviceMemory)
		c.Destroy()
	})

	t.Run("lazy fallback", func(t *testing.T) {
		sized := newCompressor[float32](t, ctx)
		limit := sized.Allocator().InUse()

		c := New[float32](WithMemoryLimit(limit))
		defer c.Destroy()
		require.NoError(t, c.Init(ctx))

		// An all-zero field selects the fallback, which no longer fits.
		_, err := c.Compress(data, nil)
		require.ErrorIs(t, err, errs.ErrOutOfDeviceMemory)
		_, err = c.Compress(data, nil)
		require.ErrorIs(t, err, errs.ErrInstanceUnusable)
	})
}

func TestRoundingTies(t *testing.T) {
	data := []float64{0.3, 0.7, 1.1, 0.5, 2.3, -0.3, 0.9, 1.5}
	shape := format.Shape1D(len(data))

	for _, pred := range []format.PredictorType{format.PredictorLorenzo, format.PredictorSpline3} {
		t.Run(pred.String(), func(t *testing.T) {
			c := newCompressor[float64](t, mustContext(t, shape,
				config.WithErrorBound(0.1, format.BoundAbs),
				config.WithPredictor(pred),
			))
			artifact, err := c.Compress(data, nil)
			require.NoError(t, err)
			requireWithinBound(t, data, decompressFresh[float64](t, artifact), 0.1)
		})
	}
}

func TestLargeMagnitudes(t *testing.T) {
	shape := format.Shape1D(8)
	cases := map[string][]float64{
		"huge":     {1, 2, 3, 1e15, 4, 5, 6, 7},
		"nan":      {1, 2, math.NaN(), 4, 5, 6, 7, 8},
		"infinite": {1, math.Inf(1), 3, 4, 5, math.Inf(-1), 7, 8},
	}

	for name, data := range cases {
		for _, pred := range []format.PredictorType{format.PredictorLorenzo, format.PredictorSpline3} {
			t.Run(name+"/"+pred.String(), func(t *testing.T) {
				c := newCompressor[float64](t, mustContext(t, shape,
					config.WithErrorBound(1e-3, format.BoundAbs),
					config.WithPredictor(pred),
				))
				artifact, err := c.Compress(data, nil)
				require.NoError(t, err)

				out := decompressFresh[float64](t, artifact)
				for i, v := range data {
					if math.IsInf(v, 0) || v == 1e15 {
						require.Equal(t, v, out[i])
					}
				}
				requireWithinBound(t, data, out, 1e-3)
			})
		}
	}

	t.Run("tiny bound", func(t *testing.T) {
		data := smoothField[float64](format.Shape1D(64), 1)
		c := newCompressor[float64](t, mustContext(t, format.Shape1D(64), config.WithErrorBound(1e-300, format.BoundAbs)))
		artifact, err := c.Compress(data, nil)
		require.NoError(t, err)
		require.Equal(t, data, decompressFresh[float64](t, artifact))
	})
}

func TestTimeRecord(t *testing.T) {
	shape := format.Shape1D(2048)
	data := smoothField[float32](shape, 1)

	c := newCompressor[float32](t, mustContext(t, shape, config.WithErrorBound(1e-3, format.BoundRel)))
	artifact, err := c.Compress(data, nil)
	require.NoError(t, err)

	var stages []string
	for _, e := range c.ExportTimeRecord() {
		stages = append(stages, e.Stage)
		require.GreaterOrEqual(t, e.Elapsed, time.Duration(0))
	}
	require.Equal(t, []string{
		StageRange, StagePredict, StageSparseEncode, StageHistogram, StageDecide, StageEncode, StageCollect,
	}, stages)

	h, err := section.ParseHeader(artifact)
	require.NoError(t, err)
	d := New[float32]()
	defer d.Destroy()
	require.NoError(t, d.InitFromHeader(&h))
	require.NoError(t, d.Decompress(&h, artifact, make([]float32, shape.Len()), nil))

	record := d.ExportTimeRecord()
	stages = stages[:0]
	for _, e := range record {
		stages = append(stages, e.Stage)
	}
	require.Equal(t, []string{StageValidate, StageSparseDecode, StageEntropyDecode, StageReconstruct}, stages)
	require.GreaterOrEqual(t, record.Total(), record[0].Elapsed)
	require.Len(t, record.Attrs(), len(record)+1)
}

func TestDebugLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	shape := format.Shape1D(1000)
	c := newCompressor[float32](t, mustContext(t, shape), WithLogger(logger), WithDebug(true))
	_, err := c.Compress(make([]float32, shape.Len()), nil)
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "codec decision")
	require.Contains(t, out, "reason=\"dominant symbol\"")
	require.Contains(t, out, "fallback codec acquired")
	require.Contains(t, out, "compressed")

	buf.Reset()
	quiet := newCompressor[float32](t, mustContext(t, shape), WithLogger(logger))
	_, err = quiet.Compress(make([]float32, shape.Len()), nil)
	require.NoError(t, err)
	require.Empty(t, buf.String())
}

func TestConcurrentInstances(t *testing.T) {
	shape := format.Shape3D(32, 32, 8)
	const instances = 4

	var wg sync.WaitGroup
	results := make([]error, instances)
	outputs := make([][]float32, instances)
	inputs := make([][]float32, instances)

	for i := range instances {
		inputs[i] = smoothField[float32](shape, uint64(i+1))
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = compressAndDecompress(shape, inputs[i], &outputs[i], i%2 == 0)
		}()
	}
	wg.Wait()

	for i := range instances {
		require.NoError(t, results[i])
		requireWithinBound(t, inputs[i], outputs[i], 1e-4)
	}
}

func compressAndDecompress(shape format.Shape, data []float32, out *[]float32, spline bool) error {
	pred := format.PredictorLorenzo
	if spline {
		pred = format.PredictorSpline3
	}
	ctx, err := config.NewContext(shape, config.WithPredictor(pred))
	if err != nil {
		return err
	}

	stream := device.NewStream(device.WithWorkers(2))
	defer stream.Close()

	c := New[float32]()
	defer c.Destroy()
	if err := c.Init(ctx); err != nil {
		return err
	}
	artifact, err := c.Compress(data, stream)
	if err != nil {
		return err
	}

	h, err := section.ParseHeader(artifact)
	if err != nil {
		return err
	}
	d := New[float32]()
	defer d.Destroy()
	if err := d.InitFromHeader(&h); err != nil {
		return err
	}

	*out = make([]float32, len(data))
	if err := d.Decompress(&h, artifact, *out, stream); err != nil {
		return err
	}

	return stream.Synchronize()
}

func BenchmarkCompress(b *testing.B) {
	shape := format.Shape3D(64, 64, 64)
	data := smoothField[float32](shape, 1)

	for _, pred := range []format.PredictorType{format.PredictorLorenzo, format.PredictorSpline3} {
		b.Run(pred.String(), func(b *testing.B) {
			c := newCompressor[float32](b, mustContext(b, shape, config.WithPredictor(pred)))
			b.SetBytes(int64(4 * shape.Len()))
			for b.Loop() {
				if _, err := c.Compress(data, nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
