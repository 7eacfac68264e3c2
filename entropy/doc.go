// Package entropy encodes error-control code streams.
//
// The primary coders are chunked canonical Huffman codecs in two metadata
// widths. Huffman32 packs each codebook entry in a uint32 (24-bit codewords)
// and Huffman64 in a uint64 (56-bit codewords). Chunks are coded and decoded
// in parallel.
//
// Huffman coding degrades when one symbol dominates the histogram, and its
// codewords can outgrow the codebook width on extreme distributions. Decide
// and Prepare detect both cases up front. Either one routes the stream to
// Fallback, which stores symbols byte-aligned behind a general-purpose back
// end from package compress.
//
// Typical use:
//
//	if err := entropy.Histogram(codes, freq, workers); err != nil {
//	    return err
//	}
//	var codec entropy.Codec = primary
//	if entropy.Decide(freq, len(codes), threshold).UseFallback {
//	    codec = fallback
//	} else if err := primary.Prepare(freq); errors.Is(err, errs.ErrCodewordOverflow) {
//	    codec = fallback
//	}
//	enc, err := codec.Encode(codes, workers)
package entropy
