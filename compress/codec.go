package compress

import (
	"fmt"

	"github.com/arloliu/szpipe/format"
)

// Compressor compresses a byte-aligned symbol buffer.
//
// Memory management:
//   - Returned slice is newly allocated and owned by the caller, except for
//     NoOpCompressor which returns its input
//   - Input slice is not modified
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor.
//
// Implementations validate the input format and return an error on corrupt
// or foreign data rather than panicking.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// SizedDecompressor is implemented by back ends whose frames do not record
// the decompressed size. Callers that know the size up front should prefer
// DecompressSized.
type SizedDecompressor interface {
	DecompressSized(data []byte, size int) ([]byte, error)
}

// Codec combines both directions and reports the algorithm it implements.
type Codec interface {
	Compressor
	Decompressor
	Type() format.CompressionType
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec retrieves the shared built-in Codec for the specified compression
// type. Built-in codecs are stateless and safe for concurrent use.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}

// DecompressSized decompresses data whose decompressed length is known,
// using the codec's sized path when it has one. It fails when the output
// length differs from size.
func DecompressSized(codec Decompressor, data []byte, size int) ([]byte, error) {
	var (
		out []byte
		err error
	)

	if sd, ok := codec.(SizedDecompressor); ok {
		out, err = sd.DecompressSized(data, size)
	} else {
		out, err = codec.Decompress(data)
	}
	if err != nil {
		return nil, err
	}

	if len(out) != size {
		return nil, fmt.Errorf("decompressed %d bytes, expected %d", len(out), size)
	}

	return out, nil
}
