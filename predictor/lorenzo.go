package predictor

import (
	"fmt"
	"math"

	"github.com/arloliu/szpipe/device"
	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/format"
)

const (
	// maxPrequant bounds |x/(2eb)| so that every Lorenzo delta, a sum of
	// eight prequantized values, is an exact float64 integer.
	maxPrequant = 1 << 49

	elemGrain = 1 << 14
	colBlock  = 1 << 10
)

// Lorenzo is the dual-quantization Lorenzo predictor.
//
// Every value is first prequantized to p = round(x / 2eb), moved by one step
// when rounding at a tie would put p*2eb just outside the bound. The code of
// an element is the first-order 3-D Lorenzo difference of p with zero
// padding outside the array, offset by the radius. Differences outside the
// radius are stored as outliers at the element's index holding the exact
// integer difference.
//
// Values no p can express within the bound, such as non-finite values,
// magnitudes beyond the prequantization range or float32 values coarser
// than 2eb, are kept verbatim as value outliers at index n+i. Their p is 0
// when the value cannot be prequantized at all.
//
// Reconstruction rebuilds p with prefix sums along X, then Y, then Z,
// scales it back by 2eb and finally writes the value outliers.
type Lorenzo[T format.Float] struct {
	shape format.Shape
	ws    []int64
}

var (
	_ Predictor[float32] = (*Lorenzo[float32])(nil)
	_ Predictor[float64] = (*Lorenzo[float64])(nil)
)

// NewLorenzo creates a Lorenzo predictor. shape must be valid.
func NewLorenzo[T format.Float](shape format.Shape) *Lorenzo[T] {
	return &Lorenzo[T]{shape: shape.Normalize()}
}

func (l *Lorenzo[T]) Type() format.PredictorType {
	return format.PredictorLorenzo
}

func (l *Lorenzo[T]) Shape() format.Shape {
	return l.shape
}

// OutlierSpace is 2n: deltas use [0, n), value outliers [n, 2n).
func (l *Lorenzo[T]) OutlierSpace() int {
	return 2 * l.shape.Len()
}

func (l *Lorenzo[T]) WorkspaceBytes() int64 {
	return device.SizeOf[int64](l.shape.Len())
}

func (l *Lorenzo[T]) Allocate(a *device.Allocator) error {
	if l.ws != nil {
		return fmt.Errorf("%w: lorenzo workspace already allocated", errs.ErrWrongState)
	}

	ws, err := device.Alloc[int64](a, l.shape.Len())
	if err != nil {
		return err
	}
	l.ws = ws

	return nil
}

func (l *Lorenzo[T]) Release(a *device.Allocator) {
	device.Free(a, l.ws)
	l.ws = nil
}

func (l *Lorenzo[T]) Clear() {
	clear(l.ws)
}

func (l *Lorenzo[T]) Construct(origin []T, eb float64, radius int, codes []uint16, outliers *format.OutlierSet, workers int) error {
	if l.ws == nil {
		return fmt.Errorf("%w: lorenzo workspace not allocated", errs.ErrWrongState)
	}
	if err := checkArgs(l.shape, len(origin), eb, radius, len(codes)); err != nil {
		return err
	}
	outliers.Reset()

	n := len(origin)
	inv := 1 / (2 * eb)
	ebx2 := 2 * eb
	ws := l.ws

	// within reports whether p reconstructs x inside the bound, computed the
	// same way Reconstruct does.
	within := func(p int64, x float64) (bool, float64) {
		d := x - float64(T(float64(p)*ebx2))
		return math.Abs(d) <= eb, d
	}

	values := make([]format.OutlierSet, device.Chunks(n, elemGrain))
	device.ParallelFor(workers, n, elemGrain, func(lo, hi int) {
		part := &values[lo/elemGrain]
		for i := lo; i < hi; i++ {
			x := float64(origin[i])
			v := x * inv
			if !(math.Abs(v) < maxPrequant-1) {
				ws[i] = 0
				part.Append(uint32(n+i), x) //nolint: gosec
				continue
			}

			p := int64(math.Round(v))
			ok, d := within(p, x)
			if !ok {
				if d > 0 {
					p++
				} else {
					p--
				}
				if ok, _ = within(p, x); !ok {
					p = int64(math.Round(v))
					part.Append(uint32(n+i), x) //nolint: gosec
				}
			}
			ws[i] = p
		}
	})

	nx, ny, nz := l.shape.X, l.shape.Y, l.shape.Z
	lines := ny * nz
	parts := make([]format.OutlierSet, device.Chunks(lines, lineGrain))
	r := int64(radius)

	device.ParallelFor(workers, lines, lineGrain, func(lo, hi int) {
		part := &parts[lo/lineGrain]
		for line := lo; line < hi; line++ {
			y, z := line%ny, line/ny
			base := line * nx

			cur := ws[base : base+nx]
			var ym, zm, yzm []int64
			if y > 0 {
				ym = ws[base-nx : base]
			}
			if z > 0 {
				zm = ws[base-nx*ny : base-nx*ny+nx]
				if y > 0 {
					yzm = ws[base-nx*ny-nx : base-nx*ny]
				}
			}

			for x := range nx {
				delta := rowDiff(cur, x) - rowDiff(ym, x) - rowDiff(zm, x) + rowDiff(yzm, x)
				if delta > -r && delta < r {
					codes[base+x] = uint16(delta + r) //nolint: gosec
					continue
				}
				codes[base+x] = 0
				part.Append(uint32(base+x), float64(delta)) //nolint: gosec
			}
		}
	})
	mergeOutliers(outliers, parts)
	mergeOutliers(outliers, values)

	return nil
}

// rowDiff returns row[x] - row[x-1] with zero padding; a nil row is all
// zeros.
func rowDiff(row []int64, x int) int64 {
	if row == nil {
		return 0
	}
	if x == 0 {
		return row[0]
	}

	return row[x] - row[x-1]
}

func (l *Lorenzo[T]) Reconstruct(codes []uint16, outliers *format.OutlierSet, eb float64, radius int, out []T, workers int) error {
	if l.ws == nil {
		return fmt.Errorf("%w: lorenzo workspace not allocated", errs.ErrWrongState)
	}
	if err := checkArgs(l.shape, len(out), eb, radius, len(codes)); err != nil {
		return err
	}

	n := len(out)
	ws := l.ws
	r := int64(radius)
	device.ParallelFor(workers, n, elemGrain, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if c := codes[i]; c != 0 {
				ws[i] = int64(c) - r
			} else {
				ws[i] = 0
			}
		}
	})

	values := 0
	for i, idx := range outliers.Index {
		v := outliers.Value[i]
		if int(idx) >= 2*n {
			return fmt.Errorf("%w: outlier index %d beyond %d elements", errs.ErrCorruptOutliers, idx, n)
		}
		if int(idx) >= n {
			values++
			continue
		}
		if !(math.Abs(v) <= 8*maxPrequant) || v != math.Trunc(v) {
			return fmt.Errorf("%w: outlier %d holds non-integral delta %g", errs.ErrCorruptOutliers, idx, v)
		}
		ws[idx] = int64(v)
	}

	nx, ny, nz := l.shape.X, l.shape.Y, l.shape.Z

	// X
	device.ParallelFor(workers, ny*nz, lineGrain, func(lo, hi int) {
		for line := lo; line < hi; line++ {
			row := ws[line*nx : (line+1)*nx]
			for x := 1; x < nx; x++ {
				row[x] += row[x-1]
			}
		}
	})

	// Y, over column blocks of every plane.
	if ny > 1 {
		blocks := (nx + colBlock - 1) / colBlock
		device.ParallelFor(workers, blocks*nz, 1, func(lo, hi int) {
			for t := lo; t < hi; t++ {
				z, b := t/blocks, t%blocks
				x0, x1 := b*colBlock, min((b+1)*colBlock, nx)
				plane := ws[z*nx*ny : (z+1)*nx*ny]
				for y := 1; y < ny; y++ {
					prev, row := plane[(y-1)*nx:y*nx], plane[y*nx:(y+1)*nx]
					for x := x0; x < x1; x++ {
						row[x] += prev[x]
					}
				}
			}
		})
	}

	// Z
	if nz > 1 {
		plane := nx * ny
		device.ParallelFor(workers, plane, elemGrain, func(lo, hi int) {
			for z := 1; z < nz; z++ {
				prev, cur := ws[(z-1)*plane:z*plane], ws[z*plane:(z+1)*plane]
				for i := lo; i < hi; i++ {
					cur[i] += prev[i]
				}
			}
		})
	}

	ebx2 := 2 * eb
	device.ParallelFor(workers, n, elemGrain, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = T(float64(ws[i]) * ebx2)
		}
	})

	if values > 0 {
		for i, idx := range outliers.Index {
			if int(idx) >= n {
				out[int(idx)-n] = T(outliers.Value[i])
			}
		}
	}

	return nil
}
