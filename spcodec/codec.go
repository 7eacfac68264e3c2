package spcodec

import (
	"fmt"

	"github.com/arloliu/szpipe/endian"
	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/format"
)

// Codec serializes an outlier set for an array of n elements.
//
// Encode appends to dst and returns the extended slice. Decode replaces the
// contents of out; every decoded index is below n. Malformed input yields an
// error wrapping errs.ErrCorruptOutliers, never a panic.
type Codec interface {
	Type() format.SparseType
	Encode(dst []byte, outliers *format.OutlierSet, n int) ([]byte, error)
	Decode(data []byte, n int, out *format.OutlierSet) error
	// MaxEncodedSize bounds the stream produced for count outliers of an
	// n-element array.
	MaxEncodedSize(n, count int) int
}

// New creates the codec selected by t, writing fixed-width fields with
// engine.
func New(t format.SparseType, engine endian.EndianEngine) (Codec, error) {
	switch t {
	case format.SparseVector:
		return NewVector(engine), nil
	case format.SparseCSR:
		return NewCSR(engine), nil
	default:
		return nil, fmt.Errorf("%w: sparse codec %s", errs.ErrInvalidConfig, t)
	}
}

func corrupt(msg string, args ...any) error {
	return fmt.Errorf("%w: "+msg, append([]any{errs.ErrCorruptOutliers}, args...)...)
}
