package entropy

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/szpipe/compress"
	"github.com/arloliu/szpipe/device"
	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/format"
)

// Fallback payload modes.
const (
	fallbackRaw        = 0x0
	fallbackCompressed = 0x1
)

// Fallback writes each symbol byte-aligned, one byte when the alphabet fits
// in 256 symbols and two little-endian bytes otherwise, then runs the buffer
// through a general-purpose back end.
//
// The bitstream is a mode byte followed by the payload. Mode 0 stores the
// symbols uncompressed and is used whenever the back end does not shrink
// them, so Encode cannot fail on any histogram. The table stream is empty.
type Fallback struct {
	backend compress.Codec

	n       int
	booklen int
	width   int

	symbols []byte // byte-aligned symbol buffer
	bits    []byte // mode byte + payload
}

var _ Codec = (*Fallback)(nil)

// NewFallback creates a fallback codec over backend.
func NewFallback(backend compress.Codec) *Fallback {
	return &Fallback{backend: backend}
}

// NewFallbackFor creates a fallback codec over the built-in back end for t.
func NewFallbackFor(t format.CompressionType) (*Fallback, error) {
	backend, err := compress.GetCodec(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidConfig, err)
	}

	return NewFallback(backend), nil
}

func (f *Fallback) Type() format.CodecType {
	return format.CodecFallback
}

// Backend returns the back-end compression type.
func (f *Fallback) Backend() format.CompressionType {
	return f.backend.Type()
}

func symbolWidth(booklen int) int {
	if booklen <= 1<<8 {
		return 1
	}

	return 2
}

func (f *Fallback) MaxEncodedSize(n int) int {
	return 1 + n*symbolWidth(f.booklen)
}

func (f *Fallback) Allocate(a *device.Allocator, n, booklen int) error {
	if f.symbols != nil {
		return fmt.Errorf("%w: fallback codec already allocated", errs.ErrWrongState)
	}
	if booklen < 2 || booklen > 1<<16 {
		return fmt.Errorf("%w: booklen %d", errs.ErrInvalidConfig, booklen)
	}
	f.n, f.booklen, f.width = n, booklen, symbolWidth(booklen)

	var err error
	if f.symbols, err = device.Alloc[byte](a, n*f.width); err != nil {
		return err
	}
	if f.bits, err = device.Alloc[byte](a, f.MaxEncodedSize(n)); err != nil {
		f.Release(a)
		return err
	}
	f.bits = f.bits[:0]

	return nil
}

func (f *Fallback) Release(a *device.Allocator) {
	device.Free(a, f.symbols)
	device.Free(a, f.bits)
	f.symbols, f.bits = nil, nil
}

func (f *Fallback) Clear() {
	clear(f.symbols)
	f.bits = f.bits[:0]
}

// Prepare is a no-op: the fallback coder accepts any histogram.
func (f *Fallback) Prepare([]uint32) error {
	return nil
}

func (f *Fallback) Encode(codes []uint16, workers int) (Encoded, error) {
	if f.symbols == nil {
		return Encoded{}, fmt.Errorf("%w: fallback codec not allocated", errs.ErrWrongState)
	}
	if len(codes) > f.n {
		return Encoded{}, fmt.Errorf("%w: %d codes, allocated for %d", errs.ErrShapeMismatch, len(codes), f.n)
	}

	raw := f.symbols[:len(codes)*f.width]
	err := device.ParallelForErr(workers, len(codes), DefaultChunkSize, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			c := codes[i]
			if int(c) >= f.booklen {
				return fmt.Errorf("%w: code %d at %d", errs.ErrSymbolOutOfRange, c, i)
			}
			if f.width == 1 {
				raw[i] = byte(c)
			} else {
				binary.LittleEndian.PutUint16(raw[2*i:], c)
			}
		}

		return nil
	})
	if err != nil {
		return Encoded{}, err
	}

	out := f.bits[:0]
	packed, cerr := f.backend.Compress(raw)
	if cerr == nil && len(packed) > 0 && len(packed) < len(raw) {
		out = append(out, fallbackCompressed)
		out = append(out, packed...)
	} else {
		out = append(out, fallbackRaw)
		out = append(out, raw...)
	}
	f.bits = out

	return Encoded{Bits: f.bits}, nil
}

func (f *Fallback) Decode(table, bits []byte, out []uint16, workers int) error {
	if f.symbols == nil {
		return fmt.Errorf("%w: fallback codec not allocated", errs.ErrWrongState)
	}
	if len(table) != 0 {
		return fmt.Errorf("%w: unexpected %d-byte code table", errs.ErrCorruptFallback, len(table))
	}
	if len(bits) == 0 {
		return fmt.Errorf("%w: empty stream", errs.ErrCorruptFallback)
	}

	size := len(out) * f.width
	var raw []byte
	switch bits[0] {
	case fallbackRaw:
		raw = bits[1:]
		if len(raw) != size {
			return fmt.Errorf("%w: %d raw bytes, want %d", errs.ErrCorruptFallback, len(raw), size)
		}
	case fallbackCompressed:
		var err error
		raw, err = compress.DecompressSized(f.backend, bits[1:], size)
		if err != nil {
			return fmt.Errorf("%w: %w", errs.ErrCorruptFallback, err)
		}
	default:
		return fmt.Errorf("%w: unknown mode %d", errs.ErrCorruptFallback, bits[0])
	}

	return device.ParallelForErr(workers, len(out), DefaultChunkSize, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			var c uint16
			if f.width == 1 {
				c = uint16(raw[i])
			} else {
				c = binary.LittleEndian.Uint16(raw[2*i:])
			}
			if int(c) >= f.booklen {
				return fmt.Errorf("%w: symbol %d at %d outside booklen %d", errs.ErrCorruptFallback, c, i, f.booklen)
			}
			out[i] = c
		}

		return nil
	})
}
