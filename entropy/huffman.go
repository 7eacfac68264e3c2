package entropy

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/arloliu/szpipe/device"
	"github.com/arloliu/szpipe/endian"
	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/format"
	"github.com/arloliu/szpipe/internal/bitio"
	"github.com/arloliu/szpipe/internal/pool"
	"github.com/arloliu/szpipe/internal/varint"
)

// Word is the codebook entry type: uint32 for the narrow codec, uint64 for
// the wide one. The top byte of an entry holds the codeword length and the
// remaining bits hold the codeword.
type Word interface {
	uint32 | uint64
}

const maxChunkSize = 1 << 30

// Huffman is a chunked canonical Huffman codec.
//
// Table stream:
//
//	uvarint booklen
//	uvarint number of coded symbols
//	per coded symbol: uvarint symbol delta, byte length
//
// Bitstream:
//
//	uvarint n, uvarint chunk size, uvarint chunk count
//	per chunk: byte length as uint32 (narrow) or uint64 (wide)
//	chunk payloads, each MSB-first and padded to a byte
type Huffman[W Word] struct {
	wordBits  int
	maxBits   int
	chunkSize int
	engine    endian.EndianEngine

	n       int
	booklen int

	book    []W     // symbol → packed (length, codeword)
	lengths []uint8 // symbol → codeword length
	scratch []uint64
	canon   canonical

	table []byte
	bits  []byte

	prepared bool
}

var (
	_ Codec = (*Huffman[uint32])(nil)
	_ Codec = (*Huffman[uint64])(nil)
)

// NewHuffman32 creates the narrow codec: 24-bit codewords, uint32 chunk
// lengths.
func NewHuffman32(chunkSize int, engine endian.EndianEngine) *Huffman[uint32] {
	return newHuffman[uint32](chunkSize, engine)
}

// NewHuffman64 creates the wide codec: 56-bit codewords, uint64 chunk
// lengths.
func NewHuffman64(chunkSize int, engine endian.EndianEngine) *Huffman[uint64] {
	return newHuffman[uint64](chunkSize, engine)
}

func newHuffman[W Word](chunkSize int, engine endian.EndianEngine) *Huffman[W] {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if engine == nil {
		engine = endian.GetLittleEndianEngine()
	}

	var zero W
	wordBits := int(unsafe.Sizeof(zero)) * 8

	return &Huffman[W]{
		wordBits:  wordBits,
		maxBits:   wordBits - 8,
		chunkSize: chunkSize,
		engine:    engine,
	}
}

func (h *Huffman[W]) Type() format.CodecType {
	if h.wordBits == 32 {
		return format.CodecHuffman32
	}

	return format.CodecHuffman64
}

// MaxCodewordBits returns the longest codeword the codebook can hold.
func (h *Huffman[W]) MaxCodewordBits() int {
	return h.maxBits
}

func (h *Huffman[W]) lenFieldSize() int {
	return h.wordBits / 8
}

func (h *Huffman[W]) maxTableSize() int {
	return 2*binary.MaxVarintLen64 + h.booklen*(binary.MaxVarintLen32+1)
}

func (h *Huffman[W]) MaxEncodedSize(n int) int {
	chunks := device.Chunks(n, h.chunkSize)
	l := maxLengthBound(n, h.booklen, h.maxBits)

	return h.maxTableSize() + 3*binary.MaxVarintLen64 + chunks*(h.lenFieldSize()+1) + (n*l+7)/8
}

func (h *Huffman[W]) Allocate(a *device.Allocator, n, booklen int) error {
	if h.book != nil {
		return fmt.Errorf("%w: huffman codec already allocated", errs.ErrWrongState)
	}
	if booklen < 2 || booklen > 1<<16 {
		return fmt.Errorf("%w: booklen %d", errs.ErrInvalidConfig, booklen)
	}
	h.n, h.booklen = n, booklen

	var err error
	if h.book, err = device.Alloc[W](a, booklen); err != nil {
		return err
	}
	if h.lengths, err = device.Alloc[uint8](a, booklen); err != nil {
		h.Release(a)
		return err
	}
	if h.scratch, err = device.Alloc[uint64](a, booklen); err != nil {
		h.Release(a)
		return err
	}

	tableCap := h.maxTableSize()
	bitsCap := h.MaxEncodedSize(n) - tableCap
	if h.table, err = device.Alloc[byte](a, tableCap); err != nil {
		h.Release(a)
		return err
	}
	if h.bits, err = device.Alloc[byte](a, bitsCap); err != nil {
		h.Release(a)
		return err
	}
	h.table, h.bits = h.table[:0], h.bits[:0]

	return nil
}

func (h *Huffman[W]) Release(a *device.Allocator) {
	device.Free(a, h.book)
	device.Free(a, h.lengths)
	device.Free(a, h.scratch)
	device.Free(a, h.table)
	device.Free(a, h.bits)
	h.book, h.lengths, h.scratch, h.table, h.bits = nil, nil, nil, nil, nil
	h.prepared = false
}

func (h *Huffman[W]) Clear() {
	clear(h.book)
	clear(h.lengths)
	clear(h.scratch)
	h.table = h.table[:0]
	h.bits = h.bits[:0]
	h.prepared = false
}

// Prepare builds the canonical codebook for freq.
func (h *Huffman[W]) Prepare(freq []uint32) error {
	h.prepared = false
	if h.book == nil {
		return fmt.Errorf("%w: huffman codec not allocated", errs.ErrWrongState)
	}
	if len(freq) != h.booklen {
		return fmt.Errorf("%w: histogram has %d bins, booklen %d", errs.ErrInvalidConfig, len(freq), h.booklen)
	}

	maxLen := buildLengths(freq, h.lengths)
	if maxLen > h.maxBits {
		return fmt.Errorf("%w: %d-bit codeword, limit %d", errs.ErrCodewordOverflow, maxLen, h.maxBits)
	}

	clear(h.scratch)
	if !assignCodes(h.lengths, maxLen, h.scratch, &h.canon) {
		return fmt.Errorf("%w: code lengths violate Kraft inequality", errs.ErrCodewordOverflow)
	}

	shift := h.wordBits - 8
	for s, l := range h.lengths {
		if l == 0 {
			h.book[s] = 0
			continue
		}
		h.book[s] = W(l)<<shift | W(h.scratch[s])
	}
	h.prepared = true

	return nil
}

func (h *Huffman[W]) Encode(codes []uint16, workers int) (Encoded, error) {
	if !h.prepared {
		return Encoded{}, fmt.Errorf("%w: huffman codec not prepared", errs.ErrWrongState)
	}

	h.table = h.appendTable(h.table[:0])

	n := len(codes)
	chunks := device.Chunks(n, h.chunkSize)
	bufs := make([]*pool.ByteBuffer, chunks)
	defer func() {
		for _, b := range bufs {
			pool.PutChunkBuffer(b)
		}
	}()

	err := device.ParallelForErr(workers, n, h.chunkSize, func(lo, hi int) error {
		buf := pool.GetChunkBuffer()
		bufs[lo/h.chunkSize] = buf

		return h.encodeChunk(codes[lo:hi], lo, buf)
	})
	if err != nil {
		return Encoded{}, err
	}

	out := h.bits[:0]
	out = binary.AppendUvarint(out, uint64(n))           //nolint: gosec
	out = binary.AppendUvarint(out, uint64(h.chunkSize)) //nolint: gosec
	out = binary.AppendUvarint(out, uint64(chunks))      //nolint: gosec
	for _, b := range bufs {
		if h.lenFieldSize() == 4 {
			out = h.engine.AppendUint32(out, uint32(b.Len())) //nolint: gosec
		} else {
			out = h.engine.AppendUint64(out, uint64(b.Len())) //nolint: gosec
		}
	}
	for _, b := range bufs {
		out = append(out, b.Bytes()...)
	}
	h.bits = out

	return Encoded{Table: h.table, Bits: h.bits}, nil
}

func (h *Huffman[W]) appendTable(dst []byte) []byte {
	nnz := 0
	for _, l := range h.lengths {
		if l > 0 {
			nnz++
		}
	}

	dst = binary.AppendUvarint(dst, uint64(h.booklen)) //nolint: gosec
	dst = binary.AppendUvarint(dst, uint64(nnz))       //nolint: gosec

	prev := 0
	for s, l := range h.lengths {
		if l == 0 {
			continue
		}
		dst = binary.AppendUvarint(dst, uint64(s-prev)) //nolint: gosec
		dst = append(dst, l)
		prev = s
	}

	return dst
}

func (h *Huffman[W]) encodeChunk(codes []uint16, base int, buf *pool.ByteBuffer) error {
	shift := h.wordBits - 8
	mask := W(1)<<shift - 1
	w := bitio.NewWriter(buf)

	for i, c := range codes {
		if int(c) >= h.booklen {
			return fmt.Errorf("%w: code %d at %d", errs.ErrSymbolOutOfRange, c, base+i)
		}

		e := h.book[c]
		l := int(e >> shift)
		if l == 0 {
			return fmt.Errorf("%w: code %d at %d absent from histogram", errs.ErrSymbolOutOfRange, c, base+i)
		}
		w.WriteBits(uint64(e&mask), l)
	}
	w.Flush()

	return nil
}

// Decode reconstructs len(out) symbols from a table and bitstream produced
// by Encode.
func (h *Huffman[W]) Decode(table, bits []byte, out []uint16, workers int) error {
	if h.lengths == nil {
		return fmt.Errorf("%w: huffman codec not allocated", errs.ErrWrongState)
	}
	if err := h.parseTable(table); err != nil {
		return err
	}

	r := varint.NewReader(bits)
	n, ok := r.Uvarint()
	if !ok || n != uint64(len(out)) {
		return corruptBits("stream holds %d symbols, want %d", n, len(out))
	}
	chunkSize, ok := r.Int(maxChunkSize)
	if !ok || chunkSize == 0 {
		return corruptBits("bad chunk size")
	}
	chunks, ok := r.Int(len(out))
	if !ok || chunks != device.Chunks(len(out), chunkSize) {
		return corruptBits("bad chunk count")
	}

	lenField := h.lenFieldSize()
	lens, ok := r.Next(chunks * lenField)
	if !ok {
		return corruptBits("truncated chunk table")
	}

	starts := make([]int, chunks+1)
	for i := range chunks {
		var l uint64
		if lenField == 4 {
			l = uint64(h.engine.Uint32(lens[i*4:]))
		} else {
			l = h.engine.Uint64(lens[i*8:])
		}
		if l > uint64(r.Remaining()) { //nolint: gosec
			return corruptBits("chunk %d length %d exceeds stream", i, l)
		}
		starts[i+1] = starts[i] + int(l) //nolint: gosec
	}
	if starts[chunks] != r.Remaining() {
		return corruptBits("chunks cover %d of %d payload bytes", starts[chunks], r.Remaining())
	}
	payload, _ := r.Next(r.Remaining())

	return device.ParallelForErr(workers, len(out), chunkSize, func(lo, hi int) error {
		c := lo / chunkSize
		return h.decodeChunk(payload[starts[c]:starts[c+1]], out[lo:hi], lo)
	})
}

func (h *Huffman[W]) parseTable(table []byte) error {
	r := varint.NewReader(table)
	booklen, ok := r.Int(1 << 16)
	if !ok || booklen != h.booklen {
		return corruptBits("table booklen %d, want %d", booklen, h.booklen)
	}
	nnz, ok := r.Int(booklen)
	if !ok || nnz == 0 {
		return corruptBits("bad symbol count")
	}

	clear(h.lengths)
	sym, maxLen := 0, 0
	for i := range nnz {
		delta, ok := r.Int(booklen)
		if !ok || (i > 0 && delta == 0) {
			return corruptBits("bad symbol delta")
		}
		sym += delta
		l, ok := r.Byte()
		if !ok || sym >= booklen || l == 0 || int(l) > h.maxBits {
			return corruptBits("bad table entry for symbol %d", sym)
		}
		h.lengths[sym] = l
		maxLen = max(maxLen, int(l))
	}
	if r.Remaining() != 0 {
		return corruptBits("%d trailing table bytes", r.Remaining())
	}

	if !assignCodes(h.lengths, maxLen, nil, &h.canon) {
		return corruptBits("code lengths violate Kraft inequality")
	}
	h.prepared = false

	return nil
}

func (h *Huffman[W]) decodeChunk(data []byte, out []uint16, base int) error {
	c := &h.canon
	r := bitio.NewReader(data)

	for i := range out {
		var code uint64
		l := 0
		for {
			bit, ok := r.ReadBit()
			if !ok {
				return corruptBits("chunk truncated at symbol %d", base+i)
			}
			code = code<<1 | bit
			l++
			if l > c.maxLen {
				return corruptBits("invalid codeword at symbol %d", base+i)
			}
			if c.count[l] > 0 && code >= c.first[l] && code-c.first[l] < c.count[l] {
				out[i] = c.symbols[c.offset[l]+int(code-c.first[l])] //nolint: gosec
				break
			}
		}
	}

	if r.Remaining() >= 8 {
		return corruptBits("%d unused bits after chunk at %d", r.Remaining(), base)
	}

	return nil
}

func corruptBits(msg string, args ...any) error {
	return fmt.Errorf("%w: "+msg, append([]any{errs.ErrCorruptBitstream}, args...)...)
}
