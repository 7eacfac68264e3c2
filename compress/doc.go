// Package compress provides the general-purpose back ends used by the
// fallback entropy coder.
//
// When a histogram of error-control codes is too skewed for Huffman coding to
// pay off, the fallback coder writes one or two bytes per symbol and hands
// the buffer to one of these back ends:
//   - None: stores the symbols unchanged
//   - Zstd: best ratio on long runs of the center symbol, the default
//   - S2: faster, slightly larger
//   - LZ4: fastest decompression
//
// All codecs share one interface:
//
//	type Codec interface {
//	    Compress(data []byte) ([]byte, error)
//	    Decompress(data []byte) ([]byte, error)
//	    Type() format.CompressionType
//	}
//
// Zstd uses github.com/klauspost/compress/zstd with pooled encoders and
// decoders. Building with the gozstd tag (and cgo enabled) switches to the
// cgo binding github.com/valyala/gozstd instead; the frame format is the same
// so artifacts remain interchangeable.
//
// LZ4 blocks do not record their decompressed length, so LZ4Compressor also
// implements SizedDecompressor. The fallback coder always knows the symbol
// buffer length and calls DecompressSized.
//
// All codecs are stateless and safe for concurrent use.
package compress
