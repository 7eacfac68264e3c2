// Package bitio provides the MSB-first bit writer and reader used by the
// Huffman bitstream.
package bitio
