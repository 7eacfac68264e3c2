package section

const (
	// Bit masks of Flag.Options.
	FallbackMask     = 0x0001 // bit 0: error-control stream was written by the fallback coder
	EndiannessMask   = 0x0002 // bit 1: 0 little-endian, 1 big-endian
	ReservedBitsMask = 0x000C // bits 2-3: reserved, must be 0
	MagicNumberMask  = 0xFFF0 // bits 4-15: magic number

	// MagicSZV1Opt identifies version 1 of the artifact format.
	MagicSZV1Opt = 0x5A10
)

// Sub-stream slots, in artifact order.
const (
	StreamOutliers = iota // sparse-encoded outlier set
	StreamTable           // entropy code table; empty for fallback artifacts
	StreamBits            // entropy bitstream or fallback payload
	NumStreams
)

// Byte layout of the fixed header.
const (
	HeaderSize      = 88 // fixed header size in bytes
	StreamEntrySize = 16 // (offset uint64, length uint64)

	offsetOptions     = 0
	offsetStrategy    = 2
	offsetCoding      = 3
	offsetElemType    = 4
	offsetErrCtrlBits = 5
	offsetBoundMode   = 6
	offsetShape       = 8
	offsetRadius      = 20
	offsetErrorBound  = 24
	offsetStreams     = 32
	offsetChecksum    = 80
)
