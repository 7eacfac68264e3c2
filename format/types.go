package format

import (
	"fmt"
	"strings"
)

type (
	PredictorType   uint8
	SparseType      uint8
	CodecType       uint8
	CompressionType uint8
	ElementType     uint8
	BoundMode       uint8
)

const (
	PredictorLorenzo PredictorType = 0x1 // PredictorLorenzo is the first-order Lorenzo difference predictor.
	PredictorSpline3 PredictorType = 0x2 // PredictorSpline3 is the multilevel cubic interpolation predictor.

	SparseVector SparseType = 0x1 // SparseVector stores outliers as (index, value) pairs.
	SparseCSR    SparseType = 0x2 // SparseCSR stores outliers as a compressed sparse row matrix.

	CodecHuffman32 CodecType = 0x1 // CodecHuffman32 is canonical Huffman with narrow (32-bit) metadata.
	CodecHuffman64 CodecType = 0x2 // CodecHuffman64 is canonical Huffman with wide (64-bit) metadata.
	CodecFallback  CodecType = 0x3 // CodecFallback is the byte-aligned fallback coder, never configured directly.

	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.

	TypeFloat32 ElementType = 0x1 // TypeFloat32 is IEEE 754 single precision.
	TypeFloat64 ElementType = 0x2 // TypeFloat64 is IEEE 754 double precision.

	BoundAbs BoundMode = 0x1 // BoundAbs treats the error bound as absolute.
	BoundRel BoundMode = 0x2 // BoundRel scales the error bound by the input value range.
)

func (p PredictorType) String() string {
	switch p {
	case PredictorLorenzo:
		return "Lorenzo"
	case PredictorSpline3:
		return "Spline3"
	default:
		return "Unknown"
	}
}

// Valid reports whether p names a supported predictor.
func (p PredictorType) Valid() bool {
	return p == PredictorLorenzo || p == PredictorSpline3
}

func (p PredictorType) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(p.String())), nil
}

func (p *PredictorType) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "lorenzo":
		*p = PredictorLorenzo
	case "spline3", "spline":
		*p = PredictorSpline3
	default:
		return fmt.Errorf("unknown predictor %q", text)
	}

	return nil
}

func (s SparseType) String() string {
	switch s {
	case SparseVector:
		return "Vector"
	case SparseCSR:
		return "CSR"
	default:
		return "Unknown"
	}
}

// Valid reports whether s names a supported sparse codec.
func (s SparseType) Valid() bool {
	return s == SparseVector || s == SparseCSR
}

func (s SparseType) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

func (s *SparseType) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "vector", "vec":
		*s = SparseVector
	case "csr", "matrix":
		*s = SparseCSR
	default:
		return fmt.Errorf("unknown sparse codec %q", text)
	}

	return nil
}

func (c CodecType) String() string {
	switch c {
	case CodecHuffman32:
		return "Huffman32"
	case CodecHuffman64:
		return "Huffman64"
	case CodecFallback:
		return "Fallback"
	default:
		return "Unknown"
	}
}

// Valid reports whether c names a configurable primary codec.
func (c CodecType) Valid() bool {
	return c == CodecHuffman32 || c == CodecHuffman64
}

// MaxCodewordBits returns the longest codeword the codec's metadata width can
// hold. The top byte of a codeword slot carries its bit length.
func (c CodecType) MaxCodewordBits() int {
	switch c {
	case CodecHuffman32:
		return 24
	case CodecHuffman64:
		return 56
	default:
		return 0
	}
}

func (c CodecType) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(c.String())), nil
}

func (c *CodecType) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "huffman32", "narrow":
		*c = CodecHuffman32
	case "huffman64", "wide":
		*c = CodecHuffman64
	default:
		return fmt.Errorf("unknown codec %q", text)
	}

	return nil
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

// Valid reports whether c names a supported back-end compression.
func (c CompressionType) Valid() bool {
	switch c {
	case CompressionNone, CompressionZstd, CompressionS2, CompressionLZ4:
		return true
	default:
		return false
	}
}

func (c CompressionType) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(c.String())), nil
}

func (c *CompressionType) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "none":
		*c = CompressionNone
	case "zstd":
		*c = CompressionZstd
	case "s2":
		*c = CompressionS2
	case "lz4":
		*c = CompressionLZ4
	default:
		return fmt.Errorf("unknown compression %q", text)
	}

	return nil
}

func (e ElementType) String() string {
	switch e {
	case TypeFloat32:
		return "float32"
	case TypeFloat64:
		return "float64"
	default:
		return "Unknown"
	}
}

// Size returns the element width in bytes, or 0 for an unknown type.
func (e ElementType) Size() int {
	switch e {
	case TypeFloat32:
		return 4
	case TypeFloat64:
		return 8
	default:
		return 0
	}
}

func (m BoundMode) String() string {
	switch m {
	case BoundAbs:
		return "Abs"
	case BoundRel:
		return "Rel"
	default:
		return "Unknown"
	}
}

// Valid reports whether m names a supported error-bound mode.
func (m BoundMode) Valid() bool {
	return m == BoundAbs || m == BoundRel
}

func (m BoundMode) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(m.String())), nil
}

func (m *BoundMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "abs":
		*m = BoundAbs
	case "rel", "r2r":
		*m = BoundRel
	default:
		return fmt.Errorf("unknown error-bound mode %q", text)
	}

	return nil
}
