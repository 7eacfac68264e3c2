// Package section defines the binary header of a szpipe artifact.
//
// An artifact is a fixed 88-byte Header followed by three sub-streams:
//
//	┌──────────────────────────────────────────────────────────┐
//	│ Header (88 bytes, fixed)                                 │
//	│  - Flag (4 bytes): magic, fallback/endian bits, codecs   │
//	│  - element type, error-control width, bound mode         │
//	│  - Shape X/Y/Z, Radius, absolute error bound             │
//	│  - 3 × (offset, length) stream entries                   │
//	│  - xxHash64 checksum of everything after the header      │
//	├──────────────────────────────────────────────────────────┤
//	│ Outliers (sparse codec stream)                           │
//	├──────────────────────────────────────────────────────────┤
//	│ Code table (Huffman only; empty for fallback)            │
//	├──────────────────────────────────────────────────────────┤
//	│ Bitstream (Huffman chunks or fallback payload)           │
//	└──────────────────────────────────────────────────────────┘
//
// Offsets are absolute and streams are packed without padding. The first
// two bytes are always little-endian so a reader can find the endian bit;
// every other multi-byte field uses the order the bit selects.
//
// Header.Validate must succeed before any sub-stream is sliced: it rejects
// out-of-range, overflowing or overlapping entries and checksum mismatches.
package section
