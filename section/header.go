package section

import (
	"fmt"
	"math"

	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/format"
	"github.com/arloliu/szpipe/internal/hash"
)

// Header is the fixed 88-byte record at the start of every artifact. It
// alone, together with the artifact bytes, determines decompression.
type Header struct {
	// Flag carries the magic number, fallback and endian bits, and the
	// strategy selectors.
	Flag Flag // byte offset 0-3
	// ElemType is the origin element type.
	ElemType format.ElementType // byte offset 4
	// ErrCtrlBits is the width of the error-control alphabet, 8 or 16.
	ErrCtrlBits uint8 // byte offset 5
	// BoundMode is the mode the error bound was configured with. ErrorBound
	// is always the resolved absolute bound.
	BoundMode format.BoundMode // byte offset 6
	// Shape is the array extent, stored as three uint32.
	Shape format.Shape // byte offset 8-19
	// Radius is the quantization radius; the code alphabet holds 2*Radius
	// symbols.
	Radius uint32 // byte offset 20-23
	// ErrorBound is the absolute reconstruction error bound.
	ErrorBound float64 // byte offset 24-31
	// Streams locates the outlier, code table and bitstream sub-streams.
	Streams [NumStreams]StreamEntry // byte offset 32-79
	// Checksum is the xxHash64 of every artifact byte after the header.
	Checksum uint64 // byte offset 80-87
}

// NewHeader creates a Header with a default Flag. Shape, bound and streams
// are filled in by the compressor.
func NewHeader() *Header {
	return &Header{
		Flag:      NewFlag(),
		BoundMode: format.BoundAbs,
	}
}

// Len returns the number of elements described by the header.
func (h *Header) Len() int {
	return h.Shape.Len()
}

// Booklen returns the size of the error-control alphabet.
func (h *Header) Booklen() int {
	return 2 * int(h.Radius)
}

// TotalSize returns the artifact size implied by the stream lengths.
func (h *Header) TotalSize() uint64 {
	total := uint64(HeaderSize)
	for _, s := range h.Streams {
		total += s.Length
	}

	return total
}

// Stream returns sub-stream i of artifact. The header must have been
// validated against artifact.
func (h *Header) Stream(artifact []byte, i int) []byte {
	s := h.Streams[i]
	return artifact[s.Offset:s.End():s.End()]
}

// Parse parses the header from a byte slice.
//
// Parameters:
//   - data: Byte slice containing header (must be exactly HeaderSize bytes)
//
// Returns:
//   - error: ErrInvalidHeaderSize, ErrInvalidMagicNumber, ErrInvalidHeaderFlags
//     or ErrInvalidShape
func (h *Header) Parse(data []byte) error {
	if len(data) != HeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	// Options is always little-endian; it carries the endian bit itself.
	h.Flag.Options = uint16(data[0]) | uint16(data[1])<<8
	h.Flag.Strategy = data[offsetStrategy]
	h.Flag.Coding = data[offsetCoding]
	if err := h.Flag.Validate(); err != nil {
		return err
	}

	engine := h.Flag.GetEndianEngine()

	h.ElemType = format.ElementType(data[offsetElemType])
	h.ErrCtrlBits = data[offsetErrCtrlBits]
	h.BoundMode = format.BoundMode(data[offsetBoundMode])
	h.Shape = format.Shape{
		X: int(engine.Uint32(data[offsetShape:])),
		Y: int(engine.Uint32(data[offsetShape+4:])),
		Z: int(engine.Uint32(data[offsetShape+8:])),
	}
	h.Radius = engine.Uint32(data[offsetRadius:])
	h.ErrorBound = math.Float64frombits(engine.Uint64(data[offsetErrorBound:]))

	for i := range h.Streams {
		base := offsetStreams + i*StreamEntrySize
		h.Streams[i].Offset = engine.Uint64(data[base:])
		h.Streams[i].Length = engine.Uint64(data[base+8:])
	}
	h.Checksum = engine.Uint64(data[offsetChecksum:])

	return h.validateFields()
}

func (h *Header) validateFields() error {
	if h.ElemType.Size() == 0 {
		return fmt.Errorf("%w: element type %d", errs.ErrInvalidHeaderFlags, h.ElemType)
	}

	if h.ErrCtrlBits != 8 && h.ErrCtrlBits != 16 {
		return fmt.Errorf("%w: error-control width %d", errs.ErrInvalidHeaderFlags, h.ErrCtrlBits)
	}

	if !h.BoundMode.Valid() {
		return fmt.Errorf("%w: bound mode %d", errs.ErrInvalidHeaderFlags, h.BoundMode)
	}

	if h.Radius == 0 || uint64(h.Radius)*2 > 1<<h.ErrCtrlBits {
		return fmt.Errorf("%w: radius %d for %d-bit codes", errs.ErrInvalidHeaderFlags, h.Radius, h.ErrCtrlBits)
	}

	if !(h.ErrorBound > 0) || math.IsInf(h.ErrorBound, 0) {
		return fmt.Errorf("%w: %v", errs.ErrInvalidBound, h.ErrorBound)
	}

	if err := h.Shape.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrInvalidShape, err)
	}

	return nil
}

// PutBytes serializes the header into b, which must hold HeaderSize bytes.
func (h *Header) PutBytes(b []byte) {
	_ = b[HeaderSize-1]

	engine := h.Flag.GetEndianEngine()

	b[0] = byte(h.Flag.Options)
	b[1] = byte(h.Flag.Options >> 8)
	b[offsetStrategy] = h.Flag.Strategy
	b[offsetCoding] = h.Flag.Coding
	b[offsetElemType] = uint8(h.ElemType)
	b[offsetErrCtrlBits] = h.ErrCtrlBits
	b[offsetBoundMode] = uint8(h.BoundMode)
	b[7] = 0

	engine.PutUint32(b[offsetShape:], uint32(h.Shape.X))   //nolint: gosec
	engine.PutUint32(b[offsetShape+4:], uint32(h.Shape.Y)) //nolint: gosec
	engine.PutUint32(b[offsetShape+8:], uint32(h.Shape.Z)) //nolint: gosec
	engine.PutUint32(b[offsetRadius:], h.Radius)
	engine.PutUint64(b[offsetErrorBound:], math.Float64bits(h.ErrorBound))

	for i, s := range h.Streams {
		base := offsetStreams + i*StreamEntrySize
		engine.PutUint64(b[base:], s.Offset)
		engine.PutUint64(b[base+8:], s.Length)
	}
	engine.PutUint64(b[offsetChecksum:], h.Checksum)
}

// Bytes serializes the header into a new byte slice.
func (h *Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	h.PutBytes(b)

	return b
}

// ValidateLayout checks the sub-stream table against an artifact of total
// bytes: every stream starts after the header, ends inside the artifact, no
// two streams overlap, and together with the header they cover the artifact
// exactly.
func (h *Header) ValidateLayout(total int) error {
	if total < HeaderSize {
		return errs.ErrInvalidHeaderSize
	}
	t := uint64(total)

	var sum uint64
	for i, s := range h.Streams {
		if err := s.within(t); err != nil {
			return fmt.Errorf("stream %d: %w", i, err)
		}
		sum += s.Length
	}

	for i := range h.Streams {
		for j := i + 1; j < len(h.Streams); j++ {
			if h.Streams[i].overlaps(h.Streams[j]) {
				return fmt.Errorf("%w: streams %d and %d", errs.ErrOverlappingStreams, i, j)
			}
		}
	}

	if sum != t-HeaderSize {
		return fmt.Errorf("%w: streams cover %d of %d body bytes", errs.ErrOffsetOutOfRange, sum, t-HeaderSize)
	}

	return nil
}

// Validate checks the layout against artifact and verifies the checksum.
// It runs before any decode kernel touches the sub-streams.
func (h *Header) Validate(artifact []byte) error {
	if err := h.ValidateLayout(len(artifact)); err != nil {
		return err
	}

	if sum := hash.Checksum(artifact[HeaderSize:]); sum != h.Checksum {
		return fmt.Errorf("%w: stored %016x, computed %016x", errs.ErrChecksumMismatch, h.Checksum, sum)
	}

	return nil
}

// ParseHeader parses a Header from the start of an artifact.
//
// Parameters:
//   - data: Byte slice starting with a header (must be at least HeaderSize bytes)
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, errs.ErrInvalidHeaderSize
	}

	h := Header{}
	if err := h.Parse(data[:HeaderSize]); err != nil {
		return Header{}, err
	}

	return h, nil
}
