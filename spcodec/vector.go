package spcodec

import (
	"encoding/binary"
	"math"

	"github.com/arloliu/szpipe/endian"
	"github.com/arloliu/szpipe/format"
	"github.com/arloliu/szpipe/internal/varint"
)

const vectorPairSize = 4 + 8

// Vector stores outliers as a uvarint count followed by fixed-width
// (uint32 index, float64 value) pairs in generation order.
type Vector struct {
	engine endian.EndianEngine
}

var _ Codec = (*Vector)(nil)

// NewVector creates a Vector codec.
func NewVector(engine endian.EndianEngine) *Vector {
	return &Vector{engine: engine}
}

func (v *Vector) Type() format.SparseType {
	return format.SparseVector
}

func (v *Vector) MaxEncodedSize(_, count int) int {
	return binary.MaxVarintLen64 + count*vectorPairSize
}

func (v *Vector) Encode(dst []byte, outliers *format.OutlierSet, n int) ([]byte, error) {
	count := outliers.Len()
	if count > n {
		return dst, corrupt("%d outliers for %d elements", count, n)
	}

	dst = binary.AppendUvarint(dst, uint64(count)) //nolint: gosec
	for i := range count {
		dst = v.engine.AppendUint32(dst, outliers.Index[i])
		dst = v.engine.AppendUint64(dst, math.Float64bits(outliers.Value[i]))
	}

	return dst, nil
}

func (v *Vector) Decode(data []byte, n int, out *format.OutlierSet) error {
	out.Reset()

	r := varint.NewReader(data)
	count, ok := r.Int(n)
	if !ok {
		return corrupt("bad outlier count")
	}

	if r.Remaining() != count*vectorPairSize {
		return corrupt("%d pairs need %d bytes, have %d", count, count*vectorPairSize, r.Remaining())
	}

	pairs, _ := r.Next(count * vectorPairSize)
	for i := range count {
		p := pairs[i*vectorPairSize:]
		idx := v.engine.Uint32(p)
		if uint64(idx) >= uint64(n) { //nolint: gosec
			return corrupt("index %d out of range %d", idx, n)
		}
		out.Append(idx, math.Float64frombits(v.engine.Uint64(p[4:])))
	}

	return nil
}
