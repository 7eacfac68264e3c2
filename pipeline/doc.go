// Package pipeline implements the compressor: the object that owns every
// device buffer and runs the prediction, outlier, histogram and entropy
// stages on a device.Stream.
//
// A Compressor is initialized either for compression, from a config.Context,
// or for decompression, from an artifact header:
//
//	c := pipeline.New[float32]()
//	defer c.Destroy()
//	if err := c.Init(ctx); err != nil { ... }
//	artifact, err := c.Compress(data, nil)
//
//	d := pipeline.New[float32]()
//	defer d.Destroy()
//	h, err := section.ParseHeader(artifact)
//	if err := d.InitFromHeader(&h); err != nil { ... }
//	err = d.Decompress(&h, artifact, out, nil)
//
// At compress time the codec for the error-control stream is chosen from its
// histogram. A stream dominated by one symbol, or one whose Huffman code
// would not fit the configured codeword width, is written by the fallback
// coder instead; the choice is recorded in the header, so decompression
// never re-derives it.
//
// A Compressor is not safe for concurrent use. Distinct instances share no
// mutable state and may run on separate streams concurrently.
package pipeline
