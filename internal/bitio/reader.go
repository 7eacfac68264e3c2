package bitio

import "encoding/binary"

// Reader extracts MSB-first bits from a byte slice.
type Reader struct {
	data     []byte
	bytePos  int
	bitBuf   uint64 // left-aligned
	bitCount int
}

// NewReader returns a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Reset retargets the reader to data.
func (r *Reader) Reset(data []byte) {
	r.data = data
	r.bytePos = 0
	r.bitBuf = 0
	r.bitCount = 0
}

// ReadBit returns the next bit, or false when the input is exhausted.
func (r *Reader) ReadBit() (uint64, bool) {
	if r.bitCount == 0 && !r.fill() {
		return 0, false
	}

	bit := r.bitBuf >> 63
	r.bitBuf <<= 1
	r.bitCount--

	return bit, true
}

// ReadBits returns the next numBits bits right-aligned, or false when fewer
// than numBits remain. numBits must be in [0, 64].
func (r *Reader) ReadBits(numBits int) (uint64, bool) {
	if numBits == 0 {
		return 0, true
	}

	if numBits <= r.bitCount {
		result := r.bitBuf >> (64 - numBits)
		r.bitBuf <<= numBits
		r.bitCount -= numBits

		return result, true
	}

	var result uint64
	for numBits > 0 {
		if r.bitCount == 0 && !r.fill() {
			return 0, false
		}

		n := min(numBits, r.bitCount)
		result = (result << n) | (r.bitBuf >> (64 - n))
		r.bitBuf <<= n
		r.bitCount -= n
		numBits -= n
	}

	return result, true
}

// Remaining returns the number of unread bits, including padding.
func (r *Reader) Remaining() int {
	return r.bitCount + (len(r.data)-r.bytePos)*8
}

func (r *Reader) fill() bool {
	if r.bytePos >= len(r.data) {
		return false
	}

	avail := len(r.data) - r.bytePos
	if avail >= 8 {
		r.bitBuf = binary.BigEndian.Uint64(r.data[r.bytePos:])
		r.bytePos += 8
		r.bitCount = 64

		return true
	}

	r.bitBuf = 0
	for i := range avail {
		r.bitBuf = (r.bitBuf << 8) | uint64(r.data[r.bytePos+i])
	}
	r.bytePos += avail
	r.bitBuf <<= (8 - avail) * 8
	r.bitCount = avail * 8

	return true
}
