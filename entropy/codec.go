package entropy

import (
	"fmt"

	"github.com/arloliu/szpipe/device"
	"github.com/arloliu/szpipe/endian"
	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/format"
)

// DefaultChunkSize is the number of symbols per independently coded
// bitstream chunk.
const DefaultChunkSize = 1 << 14

// Encoded holds the two sub-streams an entropy codec produces. Both slices
// belong to the codec and stay valid until its next Encode, Clear or
// Release.
type Encoded struct {
	Table []byte
	Bits  []byte
}

// Len returns the combined byte length of both sub-streams.
func (e Encoded) Len() int {
	return len(e.Table) + len(e.Bits)
}

// Codec entropy-codes an error-control stream over an alphabet of booklen
// symbols.
//
// The lifecycle is Allocate, then any number of Prepare/Encode or Decode
// calls, then Release. Allocate reserves every buffer an n-element stream
// can need, so Encode and Decode never grow device memory.
type Codec interface {
	Type() format.CodecType

	Allocate(a *device.Allocator, n, booklen int) error
	// Prepare builds the code for the histogram freq. It returns
	// errs.ErrCodewordOverflow when the longest codeword does not fit the
	// codec's metadata width; the codec is then unprepared.
	Prepare(freq []uint32) error
	Encode(codes []uint16, workers int) (Encoded, error)
	Decode(table, bits []byte, out []uint16, workers int) error

	// MaxEncodedSize bounds Encoded.Len for an n-element stream.
	MaxEncodedSize(n int) int
	// Clear zeroes scratch state without releasing memory.
	Clear()
	Release(a *device.Allocator)
}

// New creates the primary codec selected by t.
func New(t format.CodecType, chunkSize int, engine endian.EndianEngine) (Codec, error) {
	switch t {
	case format.CodecHuffman32:
		return NewHuffman32(chunkSize, engine), nil
	case format.CodecHuffman64:
		return NewHuffman64(chunkSize, engine), nil
	default:
		return nil, fmt.Errorf("%w: entropy codec %s", errs.ErrInvalidConfig, t)
	}
}
