package section

import (
	"fmt"
	"math"

	"github.com/arloliu/szpipe/errs"
)

// StreamEntry locates one sub-stream inside an artifact. Offsets are
// absolute, counted from the first header byte.
type StreamEntry struct {
	Offset uint64
	Length uint64
}

// End returns the offset one past the last byte of the sub-stream.
func (e StreamEntry) End() uint64 {
	return e.Offset + e.Length
}

// within checks that the entry lies inside [HeaderSize, total) without
// overflowing.
func (e StreamEntry) within(total uint64) error {
	if e.Offset < HeaderSize {
		return fmt.Errorf("%w: offset %d inside header", errs.ErrOffsetOutOfRange, e.Offset)
	}

	if e.Length > math.MaxUint64-e.Offset {
		return fmt.Errorf("%w: offset %d + length %d overflows", errs.ErrOffsetOutOfRange, e.Offset, e.Length)
	}

	if e.End() > total {
		return fmt.Errorf("%w: [%d, %d) beyond artifact size %d", errs.ErrOffsetOutOfRange, e.Offset, e.End(), total)
	}

	return nil
}

// overlaps reports whether two non-empty entries share a byte.
func (e StreamEntry) overlaps(o StreamEntry) bool {
	if e.Length == 0 || o.Length == 0 {
		return false
	}

	return e.Offset < o.End() && o.Offset < e.End()
}
