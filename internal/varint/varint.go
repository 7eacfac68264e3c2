// Package varint reads the unsigned varints that prefix szpipe sub-streams
// and walks a byte slice with bounds checking.
package varint

import "encoding/binary"

// Decode reads a uvarint from data at offset with fast paths for one and
// two byte values.
//
// Returns:
//   - uint64: The decoded value
//   - int: The offset after the varint, or the input offset on failure
//   - bool: false if data is truncated or the varint is longer than 10 bytes
func Decode(data []byte, offset int) (uint64, int, bool) {
	if offset < 0 || offset >= len(data) {
		return 0, offset, false
	}

	cur := offset
	b0 := data[cur]
	cur++
	if b0 < 0x80 {
		return uint64(b0), cur, true
	}

	if cur >= len(data) {
		return 0, offset, false
	}

	b1 := data[cur]
	cur++
	value := uint64(b0&0x7f) | uint64(b1&0x7f)<<7
	if b1 < 0x80 {
		return value, cur, true
	}

	shift := uint(14)
	for i := 2; i < binary.MaxVarintLen64; i++ {
		if cur >= len(data) {
			return 0, offset, false
		}

		b := data[cur]
		cur++
		value |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return value, cur, true
		}
		shift += 7
	}

	return 0, offset, false
}

// Reader consumes a byte slice front to back. Every method reports false
// instead of reading past the end.
type Reader struct {
	data []byte
	off  int
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Uvarint reads one unsigned varint.
func (r *Reader) Uvarint() (uint64, bool) {
	v, next, ok := Decode(r.data, r.off)
	if !ok {
		return 0, false
	}
	r.off = next

	return v, true
}

// Int reads an unsigned varint that must not exceed limit.
func (r *Reader) Int(limit int) (int, bool) {
	v, ok := r.Uvarint()
	if !ok || v > uint64(limit) { //nolint: gosec
		return 0, false
	}

	return int(v), true //nolint: gosec
}

// Byte reads a single byte.
func (r *Reader) Byte() (byte, bool) {
	if r.off >= len(r.data) {
		return 0, false
	}
	b := r.data[r.off]
	r.off++

	return b, true
}

// Next returns the next n bytes without copying.
func (r *Reader) Next(n int) ([]byte, bool) {
	if n < 0 || n > len(r.data)-r.off {
		return nil, false
	}
	b := r.data[r.off : r.off+n : r.off+n]
	r.off += n

	return b, true
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Offset returns the number of bytes consumed.
func (r *Reader) Offset() int {
	return r.off
}
