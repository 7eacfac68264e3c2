// Package errs defines the sentinel errors returned by szpipe packages.
//
// Callers should test for them with errors.Is, since most call sites wrap the
// sentinel with additional context.
package errs

import "errors"

// Usage errors.
var (
	ErrNotInitialized   = errors.New("compressor is not initialized")
	ErrWrongState       = errors.New("operation not valid in current compressor state")
	ErrInstanceUnusable = errors.New("compressor is unusable after a failed allocation; destroy and re-init")
	ErrShapeMismatch    = errors.New("data length does not match configured shape")
	ErrTypeMismatch     = errors.New("element type does not match header")
	ErrInvalidConfig    = errors.New("invalid compressor configuration")
	ErrInvalidShape     = errors.New("invalid array shape")
	ErrInvalidBound     = errors.New("invalid error bound")
)

// Resource errors.
var (
	ErrOutOfDeviceMemory = errors.New("device memory exhausted")
	ErrStreamClosed      = errors.New("launch on closed stream")
	ErrKernelPanic       = errors.New("kernel panicked")
)

// Encoding errors. ErrCodewordOverflow is absorbed by the compressor and never
// reaches Compress callers.
var (
	ErrCodewordOverflow = errors.New("huffman codeword exceeds metadata width")
	ErrSymbolOutOfRange = errors.New("error-control symbol outside codebook")
)

// Header and stream validation errors.
var (
	ErrInvalidHeaderSize  = errors.New("invalid header size")
	ErrInvalidMagicNumber = errors.New("invalid magic number")
	ErrInvalidHeaderFlags = errors.New("invalid header flags")
	ErrOffsetOutOfRange   = errors.New("sub-stream offset out of range")
	ErrOverlappingStreams = errors.New("sub-stream ranges overlap")
	ErrChecksumMismatch   = errors.New("artifact checksum mismatch")
	ErrCorruptOutliers    = errors.New("corrupt outlier stream")
	ErrCorruptBitstream   = errors.New("corrupt huffman bitstream")
	ErrCorruptFallback    = errors.New("corrupt fallback stream")
)
