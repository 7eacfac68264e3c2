package predictor

import (
	"fmt"
	"math"

	"github.com/arloliu/szpipe/device"
	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/format"
)

// AnchorStride is the spacing of the Spline3 anchor grid along every axis.
const AnchorStride = 8

// Spline3 is the multilevel cubic interpolation predictor.
//
// Points on the anchor grid are quantized against zero. The remaining points
// are visited level by level with strides 4, 2 and 1. Within a level, axes
// are processed in X, Y, Z order; a point is predicted along the last axis
// on which its coordinate is an odd multiple of the stride, from the already
// reconstructed neighbors at distance 1 and 3 strides:
//
//	cubic   (-a + 9b + 9c - d) / 16   all four neighbors present
//	linear  (b + c) / 2               right neighbor present
//	copy    b                         otherwise
//
// Residuals are quantized against the reconstructed prediction. A point is
// an outlier when its code would leave the radius or when the value it
// reconstructs to, rounded to T, misses the bound. Outliers keep their
// original value.
type Spline3[T format.Float] struct {
	shape format.Shape
	recon []float64
}

var (
	_ Predictor[float32] = (*Spline3[float32])(nil)
	_ Predictor[float64] = (*Spline3[float64])(nil)
)

// NewSpline3 creates a Spline3 predictor. shape must be valid.
func NewSpline3[T format.Float](shape format.Shape) *Spline3[T] {
	return &Spline3[T]{shape: shape.Normalize()}
}

func (s *Spline3[T]) Type() format.PredictorType {
	return format.PredictorSpline3
}

func (s *Spline3[T]) Shape() format.Shape {
	return s.shape
}

func (s *Spline3[T]) OutlierSpace() int {
	return s.shape.Len()
}

func (s *Spline3[T]) WorkspaceBytes() int64 {
	return device.SizeOf[float64](s.shape.Len())
}

func (s *Spline3[T]) Allocate(a *device.Allocator) error {
	if s.recon != nil {
		return fmt.Errorf("%w: spline workspace already allocated", errs.ErrWrongState)
	}

	recon, err := device.Alloc[float64](a, s.shape.Len())
	if err != nil {
		return err
	}
	s.recon = recon

	return nil
}

func (s *Spline3[T]) Release(a *device.Allocator) {
	device.Free(a, s.recon)
	s.recon = nil
}

func (s *Spline3[T]) Clear() {
	clear(s.recon)
}

// visitFunc handles one point given its prediction. part collects outliers
// for the range being visited and is nil when not collecting.
type visitFunc func(idx int, pred float64, part *format.OutlierSet)

func (s *Spline3[T]) Construct(origin []T, eb float64, radius int, codes []uint16, outliers *format.OutlierSet, workers int) error {
	if s.recon == nil {
		return fmt.Errorf("%w: spline workspace not allocated", errs.ErrWrongState)
	}
	if err := checkArgs(s.shape, len(origin), eb, radius, len(codes)); err != nil {
		return err
	}
	outliers.Reset()

	ebx2 := 2 * eb
	rf := float64(radius)
	recon := s.recon

	s.traverse(workers, outliers, func(idx int, pred float64, part *format.OutlierSet) {
		x := float64(origin[idx])
		q := math.Round((x - pred) / ebx2)
		if q > -rf && q < rf {
			rt := T(pred + float64(q*ebx2))
			if math.Abs(float64(rt)-x) <= eb {
				codes[idx] = uint16(int(q) + radius) //nolint: gosec
				recon[idx] = float64(rt)

				return
			}
		}

		codes[idx] = 0
		recon[idx] = x
		part.Append(uint32(idx), x) //nolint: gosec
	})

	return nil
}

func (s *Spline3[T]) Reconstruct(codes []uint16, outliers *format.OutlierSet, eb float64, radius int, out []T, workers int) error {
	if s.recon == nil {
		return fmt.Errorf("%w: spline workspace not allocated", errs.ErrWrongState)
	}
	if err := checkArgs(s.shape, len(out), eb, radius, len(codes)); err != nil {
		return err
	}

	n := len(out)
	recon := s.recon
	clear(recon)
	for i, idx := range outliers.Index {
		if int(idx) >= n {
			return fmt.Errorf("%w: outlier index %d beyond %d elements", errs.ErrCorruptOutliers, idx, n)
		}
		recon[idx] = float64(T(outliers.Value[i]))
	}

	ebx2 := 2 * eb
	s.traverse(workers, nil, func(idx int, pred float64, _ *format.OutlierSet) {
		c := codes[idx]
		if c == 0 {
			return
		}
		q := float64(int(c) - radius)
		recon[idx] = float64(T(pred + float64(q*ebx2)))
	})

	device.ParallelFor(workers, n, elemGrain, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = T(recon[i])
		}
	})

	return nil
}

// traverse visits every point once in dependency order. When collect is not
// nil, per-range outlier sets are merged into it in range order after each
// pass.
func (s *Spline3[T]) traverse(workers int, collect *format.OutlierSet, visit visitFunc) {
	anchor := [3]int{AnchorStride, AnchorStride, AnchorStride}
	s.pass(workers, 0, 0, AnchorStride, anchor, collect, func(int, int) float64 { return 0 }, visit)

	dims := s.shape.Dims()
	strides := s.shape.Strides()
	for stride := AnchorStride / 2; stride >= 1; stride /= 2 {
		for d := range 3 {
			var steps [3]int
			for e := range 3 {
				if e < d {
					steps[e] = stride
				} else {
					steps[e] = 2 * stride
				}
			}

			length, h := dims[d], stride*strides[d]
			s.pass(workers, d, stride, 2*stride, steps, collect, func(idx, c int) float64 {
				return s.interpolate(idx, c, length, stride, h)
			}, visit)
		}
	}
}

// pass visits the points whose coordinate along axis d is start, start+step,
// ... and whose other coordinates are multiples of steps[e].
func (s *Spline3[T]) pass(workers, d, start, step int, steps [3]int, collect *format.OutlierSet,
	predict func(idx, c int) float64, visit visitFunc,
) {
	dims := s.shape.Dims()
	strides := s.shape.Strides()
	if start >= dims[d] {
		return
	}

	e1, e2 := (d+1)%3, (d+2)%3
	if e1 > e2 {
		e1, e2 = e2, e1
	}
	n1 := (dims[e1] + steps[e1] - 1) / steps[e1]
	n2 := (dims[e2] + steps[e2] - 1) / steps[e2]
	lines := n1 * n2

	var parts []format.OutlierSet
	if collect != nil {
		parts = make([]format.OutlierSet, device.Chunks(lines, lineGrain))
	}

	device.ParallelFor(workers, lines, lineGrain, func(lo, hi int) {
		var part *format.OutlierSet
		if parts != nil {
			part = &parts[lo/lineGrain]
		}
		for k := lo; k < hi; k++ {
			base := (k%n1)*steps[e1]*strides[e1] + (k/n1)*steps[e2]*strides[e2]
			for c := start; c < dims[d]; c += step {
				idx := base + c*strides[d]
				visit(idx, predict(idx, c), part)
			}
		}
	})

	if collect != nil {
		mergeOutliers(collect, parts)
	}
}

// interpolate predicts the point at coordinate c along an axis of the given
// length from neighbors h elements apart per stride.
func (s *Spline3[T]) interpolate(idx, c, length, stride, h int) float64 {
	recon := s.recon
	b := recon[idx-h]
	if c+stride >= length {
		return b
	}

	cc := recon[idx+h]
	if c-3*stride >= 0 && c+3*stride < length {
		a, d := recon[idx-3*h], recon[idx+3*h]
		return (float64(-a+float64(9*b)) + float64(float64(9*cc)-d)) / 16
	}

	return (b + cc) / 2
}
