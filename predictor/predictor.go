package predictor

import (
	"fmt"
	"math"

	"github.com/arloliu/szpipe/device"
	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/format"
)

// Predictor turns an origin array into an error-control stream and an
// outlier set, and back.
//
// Codes lie in [0, 2*radius). Code 0 marks an element whose value is held in
// the outlier set; any other code carries q+radius for a quantized residual
// q. Reconstruct reproduces every element within eb of its origin.
//
// A Predictor is bound to one shape. Allocate reserves its workspace, which
// Construct and Reconstruct reuse across calls.
type Predictor[T format.Float] interface {
	Type() format.PredictorType
	Shape() format.Shape

	// OutlierSpace is the exclusive upper bound of outlier indices.
	OutlierSpace() int

	// WorkspaceBytes reports the device memory Allocate reserves.
	WorkspaceBytes() int64
	Allocate(a *device.Allocator) error
	Release(a *device.Allocator)
	Clear()

	// Construct fills codes and replaces the contents of outliers. Outliers
	// are listed in a deterministic order for a given input.
	Construct(origin []T, eb float64, radius int, codes []uint16, outliers *format.OutlierSet, workers int) error
	Reconstruct(codes []uint16, outliers *format.OutlierSet, eb float64, radius int, out []T, workers int) error
}

// New creates the predictor selected by t for arrays of the given shape.
func New[T format.Float](t format.PredictorType, shape format.Shape) (Predictor[T], error) {
	shape = shape.Normalize()
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidShape, err)
	}

	switch t {
	case format.PredictorLorenzo:
		return NewLorenzo[T](shape), nil
	case format.PredictorSpline3:
		return NewSpline3[T](shape), nil
	default:
		return nil, fmt.Errorf("%w: predictor %s", errs.ErrInvalidConfig, t)
	}
}

// lineGrain is the number of lines a worker takes at a time.
const lineGrain = 16

func checkArgs(shape format.Shape, n int, eb float64, radius int, codes int) error {
	if n != shape.Len() || codes != shape.Len() {
		return fmt.Errorf("%w: %d elements and %d codes for shape %s", errs.ErrShapeMismatch, n, codes, shape)
	}
	if !(eb > 0) || math.IsInf(eb, 1) {
		return fmt.Errorf("%w: %g", errs.ErrInvalidBound, eb)
	}
	if radius < 1 || radius > 1<<15 {
		return fmt.Errorf("%w: radius %d", errs.ErrInvalidConfig, radius)
	}

	return nil
}

// mergeOutliers appends per-chunk outlier sets to dst in chunk order.
func mergeOutliers(dst *format.OutlierSet, parts []format.OutlierSet) {
	for i := range parts {
		dst.Index = append(dst.Index, parts[i].Index...)
		dst.Value = append(dst.Value, parts[i].Value...)
	}
}
