package entropy

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/szpipe/device"
	"github.com/arloliu/szpipe/endian"
	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/format"
)

const testRadius = 512

// gaussianCodes returns error-control codes clustered around the center
// symbol, the shape a good predictor produces.
func gaussianCodes(rng *rand.Rand, n int, sigma float64) []uint16 {
	codes := make([]uint16, n)
	for i := range codes {
		q := int(rng.NormFloat64() * sigma)
		q = max(-testRadius+1, min(testRadius-1, q))
		codes[i] = uint16(q + testRadius)
	}

	return codes
}

// fibonacciCodes returns a stream whose histogram follows the Fibonacci
// sequence over k symbols, which forces a Huffman code of depth k-1.
func fibonacciCodes(k int) ([]uint16, []uint32) {
	freq := make([]uint32, 2*testRadius)
	a, b := uint32(1), uint32(1)
	var codes []uint16
	for s := 1; s <= k; s++ {
		freq[s] = a
		for range a {
			codes = append(codes, uint16(s))
		}
		a, b = b, a+b
	}

	return codes, freq
}

func histogram(t *testing.T, codes []uint16, booklen int) []uint32 {
	t.Helper()
	freq := make([]uint32, booklen)
	require.NoError(t, Histogram(codes, freq, 4))

	return freq
}

func TestHistogram(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	codes := gaussianCodes(rng, 100000, 20)

	single := make([]uint32, 2*testRadius)
	require.NoError(t, Histogram(codes, single, 1))
	multi := make([]uint32, 2*testRadius)
	multi[3] = 99 // overwritten
	require.NoError(t, Histogram(codes, multi, 8))
	require.Equal(t, single, multi)

	var total uint32
	for _, c := range multi {
		total += c
	}
	require.Equal(t, uint32(len(codes)), total)

	require.NoError(t, Histogram(nil, single, 4))
	require.Equal(t, make([]uint32, 2*testRadius), single)

	codes[777] = 2 * testRadius
	require.ErrorIs(t, Histogram(codes, multi, 4), errs.ErrSymbolOutOfRange)
}

func TestDecide(t *testing.T) {
	freq := make([]uint32, 8)
	freq[4] = 9990
	freq[5] = 10

	d := Decide(freq, 10000, DefaultFallbackThreshold)
	require.True(t, d.UseFallback)
	require.Equal(t, 4, d.Symbol)
	require.Equal(t, uint32(9990), d.Count)
	require.Equal(t, 999, d.Permille)

	freq[4], freq[5] = 9989, 11
	require.False(t, Decide(freq, 10000, DefaultFallbackThreshold).UseFallback)
	require.True(t, Decide(freq, 10000, 500).UseFallback)
	require.False(t, Decide(freq, 10000, 0).UseFallback)

	require.False(t, Decide(make([]uint32, 8), 0, DefaultFallbackThreshold).UseFallback)
}

func TestBuildLengths(t *testing.T) {
	lengths := make([]uint8, 6)

	require.Equal(t, 0, buildLengths(make([]uint32, 6), lengths))

	require.Equal(t, 1, buildLengths([]uint32{0, 0, 7, 0, 0, 0}, lengths))
	require.Equal(t, []uint8{0, 0, 1, 0, 0, 0}, lengths)

	maxLen := buildLengths([]uint32{8, 4, 2, 1, 1, 0}, lengths)
	require.Equal(t, 4, maxLen)
	require.Equal(t, []uint8{1, 2, 3, 4, 4, 0}, lengths)

	_, freq := fibonacciCodes(30)
	fib := make([]uint8, len(freq))
	require.Equal(t, 29, buildLengths(freq, fib))
}

func TestAssignCodes(t *testing.T) {
	lengths := []uint8{2, 1, 3, 3}
	codes := make([]uint64, 4)
	var c canonical

	require.True(t, assignCodes(lengths, 3, codes, &c))
	require.Equal(t, []uint64{0b10, 0b0, 0b110, 0b111}, codes)
	require.Equal(t, []uint16{1, 0, 2, 3}, c.symbols)

	require.False(t, assignCodes([]uint8{1, 1, 1}, 1, nil, &c))
}

func TestMaxLengthBound(t *testing.T) {
	require.Equal(t, 2, maxLengthBound(1, 1024, 24))
	require.Equal(t, 24, maxLengthBound(1<<30, 1024, 24))
	require.Equal(t, 3, maxLengthBound(1<<30, 4, 56))

	// 30 Fibonacci weights sum to Fib(32)-1 and produce depth 29.
	codes, _ := fibonacciCodes(30)
	require.GreaterOrEqual(t, maxLengthBound(len(codes), 1024, 56), 29)
}

func newPrimary(t *testing.T, ct format.CodecType, chunk int, n int) Codec {
	t.Helper()
	c, err := New(ct, chunk, endian.GetLittleEndianEngine())
	require.NoError(t, err)
	require.Equal(t, ct, c.Type())
	require.NoError(t, c.Allocate(nil, n, 2*testRadius))

	return c
}

func TestHuffman_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))

	cases := []struct {
		name  string
		codes []uint16
		chunk int
	}{
		{"single symbol", bytes16(testRadius, 1), 16},
		{"one symbol many", bytes16(testRadius, 5000), 512},
		{"narrow gaussian", gaussianCodes(rng, 50000, 2), 1000},
		{"wide gaussian", gaussianCodes(rng, 50000, 80), 4096},
		{"uneven last chunk", gaussianCodes(rng, 10007, 5), 1000},
	}

	for _, ct := range []format.CodecType{format.CodecHuffman32, format.CodecHuffman64} {
		t.Run(ct.String(), func(t *testing.T) {
			for _, tc := range cases {
				t.Run(tc.name, func(t *testing.T) {
					n := len(tc.codes)
					enc := newPrimary(t, ct, tc.chunk, n)
					defer enc.Release(nil)

					require.NoError(t, enc.Prepare(histogram(t, tc.codes, 2*testRadius)))
					encoded, err := enc.Encode(tc.codes, 4)
					require.NoError(t, err)
					require.LessOrEqual(t, encoded.Len(), enc.MaxEncodedSize(n))

					table := bytes.Clone(encoded.Table)
					bits := bytes.Clone(encoded.Bits)

					// A fresh instance decodes from the streams alone.
					dec := newPrimary(t, ct, DefaultChunkSize, n)
					defer dec.Release(nil)

					out := make([]uint16, n)
					require.NoError(t, dec.Decode(table, bits, out, 4))
					require.Equal(t, tc.codes, out)
				})
			}
		})
	}
}

func bytes16(v uint16, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = v
	}

	return out
}

func TestHuffman_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(2, 3))
	codes := gaussianCodes(rng, 40000, 10)
	freq := histogram(t, codes, 2*testRadius)

	var first []byte
	for _, workers := range []int{1, 3, 8} {
		c := newPrimary(t, format.CodecHuffman32, 1024, len(codes))
		require.NoError(t, c.Prepare(freq))
		enc, err := c.Encode(codes, workers)
		require.NoError(t, err)

		all := append(bytes.Clone(enc.Table), enc.Bits...)
		if first == nil {
			first = all
		}
		require.Equal(t, first, all, "workers=%d", workers)
		c.Release(nil)
	}
}

func TestHuffman_CodewordOverflow(t *testing.T) {
	codes, freq := fibonacciCodes(27) // depth 26

	narrow := newPrimary(t, format.CodecHuffman32, 4096, len(codes))
	defer narrow.Release(nil)
	require.ErrorIs(t, narrow.Prepare(freq), errs.ErrCodewordOverflow)

	_, err := narrow.Encode(codes, 2)
	require.ErrorIs(t, err, errs.ErrWrongState)

	wide := newPrimary(t, format.CodecHuffman64, 4096, len(codes))
	defer wide.Release(nil)
	require.NoError(t, wide.Prepare(freq))
	enc, err := wide.Encode(codes, 2)
	require.NoError(t, err)

	out := make([]uint16, len(codes))
	require.NoError(t, wide.Decode(enc.Table, enc.Bits, out, 2))
	require.Equal(t, codes, out)
}

func TestHuffman_EncodeErrors(t *testing.T) {
	c := newPrimary(t, format.CodecHuffman32, 64, 100)
	defer c.Release(nil)

	codes := bytes16(testRadius, 100)
	require.NoError(t, c.Prepare(histogram(t, codes, 2*testRadius)))

	codes[50] = testRadius + 1 // absent from histogram
	_, err := c.Encode(codes, 2)
	require.ErrorIs(t, err, errs.ErrSymbolOutOfRange)

	codes[50] = 4 * testRadius
	_, err = c.Encode(codes, 2)
	require.ErrorIs(t, err, errs.ErrSymbolOutOfRange)

	require.ErrorIs(t, c.Prepare(make([]uint32, 10)), errs.ErrInvalidConfig)
	require.ErrorIs(t, c.Allocate(nil, 100, 2*testRadius), errs.ErrWrongState)
}

func TestHuffman_DecodeCorrupt(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 4))
	codes := gaussianCodes(rng, 3000, 4)

	c := newPrimary(t, format.CodecHuffman32, 500, len(codes))
	defer c.Release(nil)
	require.NoError(t, c.Prepare(histogram(t, codes, 2*testRadius)))
	enc, err := c.Encode(codes, 2)
	require.NoError(t, err)
	table, bits := bytes.Clone(enc.Table), bytes.Clone(enc.Bits)

	out := make([]uint16, len(codes))

	t.Run("truncated bits", func(t *testing.T) {
		for _, cut := range []int{0, 1, 5, len(bits) / 2, len(bits) - 1} {
			require.ErrorIs(t, c.Decode(table, bits[:cut], out, 2), errs.ErrCorruptBitstream, "cut=%d", cut)
		}
	})

	t.Run("truncated table", func(t *testing.T) {
		for _, cut := range []int{0, 1, 3, len(table) - 1} {
			require.ErrorIs(t, c.Decode(table[:cut], bits, out, 2), errs.ErrCorruptBitstream, "cut=%d", cut)
		}
	})

	t.Run("wrong length", func(t *testing.T) {
		require.ErrorIs(t, c.Decode(table, bits, out[:len(out)-1], 2), errs.ErrCorruptBitstream)
	})

	t.Run("oversubscribed lengths", func(t *testing.T) {
		bad := []byte{0x80, 0x08, 3, 1, 1, 1, 1, 1, 1} // booklen 1024, 3 symbols of length 1
		require.ErrorIs(t, c.Decode(bad, bits, out, 2), errs.ErrCorruptBitstream)
	})

	t.Run("random payload never panics", func(t *testing.T) {
		junk := bytes.Clone(bits)
		for range 50 {
			for i := 10; i < len(junk); i++ {
				junk[i] = byte(rng.UintN(256))
			}
			require.NotPanics(t, func() { _ = c.Decode(table, junk, out, 2) })
		}
	})
}

func TestHuffman_Allocation(t *testing.T) {
	a := device.NewAllocator(1 << 10)
	c := NewHuffman32(DefaultChunkSize, nil)
	require.ErrorIs(t, c.Allocate(a, 100000, 2*testRadius), errs.ErrOutOfDeviceMemory)
	require.Equal(t, int64(0), a.InUse())

	a = device.NewAllocator(0)
	require.NoError(t, c.Allocate(a, 100000, 2*testRadius))
	require.Positive(t, a.InUse())
	c.Clear()
	c.Release(a)
	require.Equal(t, int64(0), a.InUse())

	require.ErrorIs(t, c.Allocate(nil, 10, 1), errs.ErrInvalidConfig)
	_, err := New(format.CodecFallback, 0, nil)
	require.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestFallback_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))

	skewed := bytes16(testRadius, 20000)
	skewed[1234] = testRadius + 3

	for _, ct := range []format.CompressionType{
		format.CompressionNone, format.CompressionZstd, format.CompressionS2, format.CompressionLZ4,
	} {
		t.Run(ct.String(), func(t *testing.T) {
			for _, booklen := range []int{256, 2 * testRadius} {
				codes := skewed
				if booklen == 256 {
					codes = make([]uint16, len(skewed))
					for i := range codes {
						codes[i] = uint16(rng.UintN(256))
					}
				}

				f, err := NewFallbackFor(ct)
				require.NoError(t, err)
				require.Equal(t, ct, f.Backend())
				require.Equal(t, format.CodecFallback, f.Type())
				require.NoError(t, f.Allocate(nil, len(codes), booklen))
				require.NoError(t, f.Prepare(nil))

				enc, err := f.Encode(codes, 4)
				require.NoError(t, err)
				require.Empty(t, enc.Table)
				require.LessOrEqual(t, enc.Len(), f.MaxEncodedSize(len(codes)))

				out := make([]uint16, len(codes))
				require.NoError(t, f.Decode(nil, bytes.Clone(enc.Bits), out, 4))
				require.Equal(t, codes, out)
				f.Release(nil)
			}
		})
	}
}

func TestFallback_Modes(t *testing.T) {
	f, err := NewFallbackFor(format.CompressionZstd)
	require.NoError(t, err)
	require.NoError(t, f.Allocate(nil, 10000, 2*testRadius))
	defer f.Release(nil)

	enc, err := f.Encode(bytes16(testRadius, 10000), 1)
	require.NoError(t, err)
	require.Equal(t, byte(fallbackCompressed), enc.Bits[0])
	require.Less(t, len(enc.Bits), 1000)

	enc, err = f.Encode(bytes16(testRadius, 3), 1)
	require.NoError(t, err)
	require.Equal(t, []byte{fallbackRaw, 0x00, 0x02, 0x00, 0x02, 0x00, 0x02}, enc.Bits)

	noop, err := NewFallbackFor(format.CompressionNone)
	require.NoError(t, err)
	require.NoError(t, noop.Allocate(nil, 100, 2*testRadius))
	defer noop.Release(nil)
	enc, err = noop.Encode(bytes16(testRadius, 100), 1)
	require.NoError(t, err)
	require.Equal(t, byte(fallbackRaw), enc.Bits[0])
}

func TestFallback_Errors(t *testing.T) {
	f, err := NewFallbackFor(format.CompressionS2)
	require.NoError(t, err)

	_, err = f.Encode([]uint16{1}, 1)
	require.ErrorIs(t, err, errs.ErrWrongState)

	require.NoError(t, f.Allocate(nil, 4, 2*testRadius))
	defer f.Release(nil)

	_, err = f.Encode([]uint16{1, 2, 3, 4, 5}, 1)
	require.ErrorIs(t, err, errs.ErrShapeMismatch)

	_, err = f.Encode([]uint16{1, 2, 2 * testRadius, 4}, 1)
	require.ErrorIs(t, err, errs.ErrSymbolOutOfRange)

	out := make([]uint16, 2)
	tests := []struct {
		name  string
		table []byte
		bits  []byte
	}{
		{"empty", nil, nil},
		{"table present", []byte{1}, []byte{fallbackRaw, 1, 0, 1, 0}},
		{"bad mode", nil, []byte{7, 1, 0, 1, 0}},
		{"short raw", nil, []byte{fallbackRaw, 1, 0, 1}},
		{"symbol out of range", nil, []byte{fallbackRaw, 0xFF, 0xFF, 1, 0}},
		{"garbage compressed", nil, []byte{fallbackCompressed, 0xFF, 0xFF, 0xFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, f.Decode(tt.table, tt.bits, out, 1), errs.ErrCorruptFallback)
		})
	}

	_, err = NewFallbackFor(format.CompressionType(0))
	require.ErrorIs(t, err, errs.ErrInvalidConfig)
}
