package section

import (
	"github.com/arloliu/szpipe/endian"
	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/format"
)

// Flag is the packed strategy descriptor occupying bytes 0-3 of the header.
type Flag struct {
	// Options is a packed field for various options.
	// Bit 0 is the fallback flag, 1 means the error-control stream was
	// written by the fallback coder.
	// Bit 1 is endianness flag, 0 means little-endian, 1 means big-endian.
	// Bit 2-3 are reserved for future use, must be set to 0.
	// Bit 4-15 are magic number, 0x5A10 for format v1.
	Options uint16

	// Strategy holds the predictor in bits 0-3 and the sparse codec in bits 4-7.
	Strategy uint8
	// Coding holds the entropy codec width in bits 0-3 and the fallback
	// back-end compression in bits 4-7.
	Coding uint8
}

// NewFlag creates a Flag with the default strategies: Lorenzo, vector
// outliers, narrow Huffman, zstd fallback, little-endian.
func NewFlag() Flag {
	f := Flag{Options: MagicSZV1Opt}
	f.SetPredictor(format.PredictorLorenzo)
	f.SetSparse(format.SparseVector)
	f.SetCodec(format.CodecHuffman32)
	f.SetFallbackCompression(format.CompressionZstd)

	return f
}

// UsesFallback reports whether the fallback coder produced the bitstream.
func (f Flag) UsesFallback() bool {
	return f.Options&FallbackMask != 0
}

// SetFallback records which coder produced the bitstream.
func (f *Flag) SetFallback(used bool) {
	if used {
		f.Options |= FallbackMask
	} else {
		f.Options &^= FallbackMask
	}
}

// IsLittleEndian returns whether the data is little-endian.
func (f Flag) IsLittleEndian() bool {
	return f.Options&EndiannessMask == 0
}

// IsBigEndian returns whether the data is big-endian.
func (f Flag) IsBigEndian() bool {
	return f.Options&EndiannessMask != 0
}

// WithLittleEndian sets little-endian byte order.
func (f *Flag) WithLittleEndian() {
	f.Options &^= EndiannessMask
}

// WithBigEndian sets big-endian byte order.
func (f *Flag) WithBigEndian() {
	f.Options |= EndiannessMask
}

// GetEndianEngine returns the engine matching the flag's byte order.
func (f Flag) GetEndianEngine() endian.EndianEngine {
	return endian.EngineFor(f.IsBigEndian())
}

// GetMagicNumber returns the magic number from the Options field.
func (f Flag) GetMagicNumber() uint16 {
	return f.Options & MagicNumberMask
}

func (f Flag) Predictor() format.PredictorType {
	return format.PredictorType(f.Strategy & 0x0F)
}

func (f *Flag) SetPredictor(p format.PredictorType) {
	f.Strategy &^= 0x0F
	f.Strategy |= uint8(p) & 0x0F
}

func (f Flag) Sparse() format.SparseType {
	return format.SparseType((f.Strategy >> 4) & 0x0F)
}

func (f *Flag) SetSparse(s format.SparseType) {
	f.Strategy &^= 0xF0
	f.Strategy |= (uint8(s) & 0x0F) << 4
}

// Codec returns the configured primary codec. It is recorded even when the
// fallback coder was used, so a decompressor knows the configured width.
func (f Flag) Codec() format.CodecType {
	return format.CodecType(f.Coding & 0x0F)
}

func (f *Flag) SetCodec(c format.CodecType) {
	f.Coding &^= 0x0F
	f.Coding |= uint8(c) & 0x0F
}

func (f Flag) FallbackCompression() format.CompressionType {
	return format.CompressionType((f.Coding >> 4) & 0x0F)
}

func (f *Flag) SetFallbackCompression(c format.CompressionType) {
	f.Coding &^= 0xF0
	f.Coding |= (uint8(c) & 0x0F) << 4
}

// Validate checks the magic number, the reserved bits and every strategy
// selector.
func (f Flag) Validate() error {
	if f.GetMagicNumber() != MagicSZV1Opt {
		return errs.ErrInvalidMagicNumber
	}

	if f.Options&ReservedBitsMask != 0 {
		return errs.ErrInvalidHeaderFlags
	}

	if !f.Predictor().Valid() || !f.Sparse().Valid() || !f.Codec().Valid() || !f.FallbackCompression().Valid() {
		return errs.ErrInvalidHeaderFlags
	}

	return nil
}
