package bitio

import (
	"encoding/binary"

	"github.com/arloliu/szpipe/internal/pool"
)

// Writer packs variable-length codes MSB-first into a byte buffer.
//
// Bits accumulate in a 64-bit register and are flushed eight bytes at a time,
// so a Writer never touches the buffer for short codes.
type Writer struct {
	buf      *pool.ByteBuffer
	bitBuf   uint64 // pending bits, right-aligned
	bitCount int    // number of valid bits in bitBuf
}

// NewWriter returns a Writer appending to buf.
func NewWriter(buf *pool.ByteBuffer) *Writer {
	return &Writer{buf: buf}
}

// WriteBits appends the low numBits bits of value, most significant first.
// numBits must be in [0, 64].
func (w *Writer) WriteBits(value uint64, numBits int) {
	if numBits == 0 {
		return
	}

	if numBits < 64 {
		value &= (1 << numBits) - 1
	}

	available := 64 - w.bitCount
	if numBits <= available {
		w.bitBuf = (w.bitBuf << numBits) | value
		w.bitCount += numBits

		if w.bitCount == 64 {
			w.flush()
		}

		return
	}

	// Split across the register boundary.
	highBits := numBits - available
	w.bitBuf = (w.bitBuf << available) | (value >> highBits)
	w.bitCount = 64
	w.flush()

	w.bitBuf = value & ((1 << highBits) - 1)
	w.bitCount = highBits
}

// Flush writes pending bits, zero-padding the final byte.
func (w *Writer) Flush() {
	w.flush()
}

func (w *Writer) flush() {
	if w.bitCount == 0 {
		return
	}

	numBytes := (w.bitCount + 7) / 8
	aligned := w.bitBuf << (64 - w.bitCount)

	start := w.buf.Len()
	w.buf.ExtendOrGrow(numBytes)
	bs := w.buf.Slice(start, start+numBytes)

	if numBytes == 8 {
		binary.BigEndian.PutUint64(bs, aligned)
	} else {
		for i := range numBytes {
			bs[i] = byte(aligned >> (56 - i*8))
		}
	}

	w.bitBuf = 0
	w.bitCount = 0
}
