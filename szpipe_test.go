package szpipe

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/szpipe/config"
	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/format"
)

func ramp[T format.Float](n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = T(math.Sin(float64(i)/50) * 100)
	}

	return out
}

func TestCompressDecompress(t *testing.T) {
	shape := format.Shape2D(120, 40)
	data := ramp[float64](shape.Len())

	artifact, err := Compress(data, shape, config.WithErrorBound(1e-3, format.BoundAbs))
	require.NoError(t, err)
	require.Equal(t, len(artifact), cap(artifact))

	h, err := ParseHeader(artifact)
	require.NoError(t, err)
	require.Equal(t, format.TypeFloat64, h.ElemType)
	require.Equal(t, shape, h.Shape)
	require.Equal(t, 1e-3, h.ErrorBound)

	out, gotShape, err := Decompress[float64](artifact)
	require.NoError(t, err)
	require.Equal(t, shape, gotShape)
	for i := range data {
		require.InDelta(t, data[i], out[i], 1e-3)
	}
}

func TestCompress_Spline3Float32(t *testing.T) {
	shape := format.Shape3D(20, 10, 5)
	data := ramp[float32](shape.Len())

	artifact, err := Compress(data, shape,
		config.WithPredictor(format.PredictorSpline3),
		config.WithErrorBound(1e-2, format.BoundAbs),
	)
	require.NoError(t, err)

	out, _, err := Decompress[float32](artifact)
	require.NoError(t, err)
	for i := range data {
		require.InDelta(t, data[i], out[i], 1e-2)
	}
}

func TestCompress_Errors(t *testing.T) {
	_, err := Compress([]float32{1, 2, 3}, format.Shape1D(4))
	require.ErrorIs(t, err, errs.ErrShapeMismatch)

	_, err = Compress([]float32{1}, format.Shape1D(1), config.WithErrorBound(-1, format.BoundAbs))
	require.ErrorIs(t, err, errs.ErrInvalidBound)

	_, err = Compress([]float32{}, format.Shape{X: 0})
	require.ErrorIs(t, err, errs.ErrInvalidShape)
}

func TestDecompress_Errors(t *testing.T) {
	_, _, err := Decompress[float32](nil)
	require.ErrorIs(t, err, errs.ErrInvalidHeaderSize)

	artifact, err := Compress(ramp[float32](64), format.Shape1D(64))
	require.NoError(t, err)

	_, _, err = Decompress[float64](artifact)
	require.ErrorIs(t, err, errs.ErrTypeMismatch)

	artifact[len(artifact)-1] ^= 1
	_, _, err = Decompress[float32](artifact)
	require.ErrorIs(t, err, errs.ErrChecksumMismatch)
}
