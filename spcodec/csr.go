package spcodec

import (
	"encoding/binary"
	"math"

	"github.com/arloliu/szpipe/endian"
	"github.com/arloliu/szpipe/format"
	"github.com/arloliu/szpipe/internal/varint"
)

// CSR views the flattened array as an m×m matrix, m = ceil(sqrt(n)), and
// stores outliers in compressed sparse row form:
//
//	uvarint nnz
//	m × uvarint row count
//	nnz × uvarint column, delta from the previous column in the row
//	nnz × float64 value
//
// Dense outlier clusters along X produce one-byte column deltas, which is
// where CSR beats Vector.
type CSR struct {
	engine endian.EndianEngine
}

var _ Codec = (*CSR)(nil)

// NewCSR creates a CSR codec.
func NewCSR(engine endian.EndianEngine) *CSR {
	return &CSR{engine: engine}
}

func (c *CSR) Type() format.SparseType {
	return format.SparseCSR
}

// MatrixDim returns the side m of the smallest square matrix holding n
// elements.
func MatrixDim(n int) int {
	if n <= 0 {
		return 0
	}

	m := int(math.Sqrt(float64(n)))
	for m*m < n {
		m++
	}
	for m > 1 && (m-1)*(m-1) >= n {
		m--
	}

	return m
}

func (c *CSR) MaxEncodedSize(n, count int) int {
	m := MatrixDim(n)
	return binary.MaxVarintLen64 + m*binary.MaxVarintLen32 + count*(binary.MaxVarintLen32+8)
}

// Encode sorts outliers by position in place before writing them.
func (c *CSR) Encode(dst []byte, outliers *format.OutlierSet, n int) ([]byte, error) {
	count := outliers.Len()
	if count > n {
		return dst, corrupt("%d outliers for %d elements", count, n)
	}
	outliers.Sort()
	if count > 0 && uint64(outliers.Index[count-1]) >= uint64(n) { //nolint: gosec
		return dst, corrupt("index %d out of range %d", outliers.Index[count-1], n)
	}

	m := MatrixDim(n)
	dst = binary.AppendUvarint(dst, uint64(count)) //nolint: gosec

	// Row counts.
	k := 0
	for row := range m {
		start := k
		limit := uint64((row + 1) * m) //nolint: gosec
		for k < count && uint64(outliers.Index[k]) < limit {
			k++
		}
		dst = binary.AppendUvarint(dst, uint64(k-start)) //nolint: gosec
	}

	// Column deltas per row.
	prevRow := -1
	prevCol := 0
	for i := range count {
		idx := int(outliers.Index[i])
		row, col := idx/m, idx%m
		delta := col
		if row == prevRow {
			delta = col - prevCol
		}
		dst = binary.AppendUvarint(dst, uint64(delta)) //nolint: gosec
		prevRow, prevCol = row, col
	}

	for i := range count {
		dst = c.engine.AppendUint64(dst, math.Float64bits(outliers.Value[i]))
	}

	return dst, nil
}

func (c *CSR) Decode(data []byte, n int, out *format.OutlierSet) error {
	out.Reset()

	m := MatrixDim(n)
	r := varint.NewReader(data)

	nnz, ok := r.Int(n)
	if !ok {
		return corrupt("bad outlier count")
	}

	rowCounts := make([]int, m)
	total := 0
	for row := range m {
		cnt, ok := r.Int(m)
		if !ok {
			return corrupt("bad count for row %d", row)
		}
		rowCounts[row] = cnt
		total += cnt
	}
	if total != nnz {
		return corrupt("row counts sum to %d, header says %d", total, nnz)
	}

	for row, cnt := range rowCounts {
		col := 0
		for j := range cnt {
			delta, ok := r.Int(m)
			if !ok {
				return corrupt("bad column in row %d", row)
			}
			if j > 0 && delta == 0 {
				return corrupt("duplicate column in row %d", row)
			}
			col += delta
			idx := row*m + col
			if col >= m || idx >= n {
				return corrupt("index %d out of range %d", idx, n)
			}
			out.Index = append(out.Index, uint32(idx)) //nolint: gosec
		}
	}

	if r.Remaining() != nnz*8 {
		return corrupt("%d values need %d bytes, have %d", nnz, nnz*8, r.Remaining())
	}
	values, _ := r.Next(nnz * 8)
	for i := range nnz {
		out.Value = append(out.Value, math.Float64frombits(c.engine.Uint64(values[i*8:])))
	}

	return nil
}
