package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/arloliu/szpipe/config"
	"github.com/arloliu/szpipe/device"
	"github.com/arloliu/szpipe/endian"
	"github.com/arloliu/szpipe/entropy"
	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/format"
	"github.com/arloliu/szpipe/internal/options"
	"github.com/arloliu/szpipe/predictor"
	"github.com/arloliu/szpipe/section"
	"github.com/arloliu/szpipe/spcodec"
)

type state uint8

const (
	stateUninitialized state = iota
	stateCompress
	stateDecompress
	stateBroken
)

func (s state) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateCompress:
		return "compress-ready"
	case stateDecompress:
		return "decompress-ready"
	case stateBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// Compressor is the compression pipeline for arrays of T.
type Compressor[T format.Float] struct {
	logger *slog.Logger
	alloc  *device.Allocator
	debug  bool

	defaultStream *device.Stream

	state  state
	ctx    *config.Context
	header section.Header
	engine endian.EndianEngine
	n      int

	pred     predictor.Predictor[T]
	sparse   spcodec.Codec
	primary  entropy.Codec
	fallback *entropy.Fallback // acquired on first use

	codes    []uint16
	freq     []uint32
	outliers format.OutlierSet
	reserved []byte // worst-case artifact, compress side only

	times TimeRecord
}

// New creates an uninitialized Compressor.
func New[T format.Float](opts ...Option) *Compressor[T] {
	s := &settings{logger: slog.New(slog.DiscardHandler)}
	_ = options.Apply(s, opts...)

	return &Compressor[T]{
		logger:        s.logger,
		alloc:         device.NewAllocator(s.memoryLimit),
		debug:         s.debug,
		defaultStream: device.NewInlineStream(),
	}
}

// Allocator returns the allocator device buffers are accounted against.
func (c *Compressor[T]) Allocator() *device.Allocator {
	return c.alloc
}

// DataLen returns the element count the instance is initialized for.
func (c *Compressor[T]) DataLen() int {
	return c.n
}

// Init allocates every buffer compression of ctx.Shape can need and makes
// the instance compress-ready. The instance keeps a copy of ctx; later
// changes to ctx do not affect it.
func (c *Compressor[T]) Init(ctx *config.Context) error {
	if err := c.checkUninitialized(); err != nil {
		return err
	}
	if ctx == nil {
		return fmt.Errorf("%w: nil context", errs.ErrInvalidConfig)
	}
	if err := ctx.Validate(); err != nil {
		return err
	}

	h := section.NewHeader()
	if ctx.BigEndian {
		h.Flag.WithBigEndian()
	}
	h.Flag.SetPredictor(ctx.Predictor)
	h.Flag.SetSparse(ctx.Sparse)
	h.Flag.SetCodec(ctx.Codec)
	h.Flag.SetFallbackCompression(ctx.FallbackCompression)
	h.ElemType = format.ElementTypeOf[T]()
	h.ErrCtrlBits = uint8(ctx.ErrCtrlBits) //nolint: gosec
	h.BoundMode = ctx.BoundMode
	h.Shape = ctx.Shape
	h.Radius = uint32(ctx.Radius) //nolint: gosec
	h.ErrorBound = ctx.ErrorBound

	if err := c.allocate(h, ctx.ChunkSize, true); err != nil {
		return err
	}

	snapshot := *ctx
	c.ctx = &snapshot
	c.state = stateCompress
	c.logDebug("compressor initialized",
		"shape", h.Shape.String(),
		"predictor", ctx.Predictor.String(),
		"codec", ctx.Codec.String(),
		"device_bytes", c.alloc.InUse(),
	)

	return nil
}

// InitFromHeader allocates the buffers needed to decompress artifacts
// described by h and makes the instance decompress-ready.
func (c *Compressor[T]) InitFromHeader(h *section.Header) error {
	if err := c.checkUninitialized(); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("%w: nil header", errs.ErrInvalidConfig)
	}
	if err := h.Flag.Validate(); err != nil {
		return err
	}
	if want := format.ElementTypeOf[T](); h.ElemType != want {
		return fmt.Errorf("%w: header holds %s, instance decodes %s", errs.ErrTypeMismatch, h.ElemType, want)
	}

	if err := c.allocate(h, entropy.DefaultChunkSize, false); err != nil {
		return err
	}

	c.state = stateDecompress
	c.logDebug("decompressor initialized", "shape", h.Shape.String(), "device_bytes", c.alloc.InUse())

	return nil
}

func (c *Compressor[T]) checkUninitialized() error {
	switch c.state {
	case stateUninitialized:
		return nil
	case stateBroken:
		return errs.ErrInstanceUnusable
	default:
		return fmt.Errorf("%w: instance is %s; call Destroy first", errs.ErrWrongState, c.state)
	}
}

func (c *Compressor[T]) allocate(h *section.Header, chunkSize int, compress bool) error {
	shape := h.Shape.Normalize()
	if err := shape.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrInvalidShape, err)
	}

	c.header = *h
	c.header.Shape = shape
	c.engine = h.Flag.GetEndianEngine()
	c.n = shape.Len()
	booklen := c.header.Booklen()
	if booklen < 2 || booklen > 1<<16 {
		return fmt.Errorf("%w: radius %d", errs.ErrInvalidConfig, h.Radius)
	}

	var err error
	if c.pred, err = predictor.New[T](h.Flag.Predictor(), shape); err != nil {
		return err
	}
	if c.sparse, err = spcodec.New(h.Flag.Sparse(), c.engine); err != nil {
		return err
	}
	if c.primary, err = entropy.New(h.Flag.Codec(), chunkSize, c.engine); err != nil {
		return err
	}

	if err = c.pred.Allocate(c.alloc); err != nil {
		return c.fail("allocate predictor workspace", err)
	}
	if err = c.primary.Allocate(c.alloc, c.n, booklen); err != nil {
		return c.fail("allocate entropy codec", err)
	}
	if c.codes, err = device.Alloc[uint16](c.alloc, c.n); err != nil {
		return c.fail("allocate error-control stream", err)
	}
	if c.freq, err = device.Alloc[uint32](c.alloc, booklen); err != nil {
		return c.fail("allocate histogram", err)
	}

	if compress {
		size := section.HeaderSize + c.sparse.MaxEncodedSize(c.pred.OutlierSpace(), c.pred.OutlierSpace()) +
			max(c.primary.MaxEncodedSize(c.n), fallbackMaxEncodedSize(c.n, booklen))
		if c.reserved, err = device.Alloc[byte](c.alloc, size); err != nil {
			return c.fail("allocate output buffer", err)
		}
	}

	return nil
}

func fallbackMaxEncodedSize(n, booklen int) int {
	if booklen <= 1<<8 {
		return 1 + n
	}

	return 1 + 2*n
}

// acquireFallback returns the fallback codec for backend, allocating it on
// first use. A codec for a different backend is replaced.
func (c *Compressor[T]) acquireFallback(backend format.CompressionType) (*entropy.Fallback, error) {
	if c.fallback != nil {
		if c.fallback.Backend() == backend {
			return c.fallback, nil
		}
		c.fallback.Release(c.alloc)
		c.fallback = nil
	}

	fb, err := entropy.NewFallbackFor(backend)
	if err != nil {
		return nil, err
	}
	if err := fb.Allocate(c.alloc, c.n, c.header.Booklen()); err != nil {
		return nil, c.fail("allocate fallback codec", err)
	}
	c.fallback = fb
	c.logDebug("fallback codec acquired", "backend", backend.String(), "device_bytes", c.alloc.InUse())

	return fb, nil
}

// fail marks the instance unusable after an allocation failure.
func (c *Compressor[T]) fail(what string, err error) error {
	c.state = stateBroken
	c.logger.Warn("device allocation failed",
		"what", what,
		"error", err,
		"in_use", c.alloc.InUse(),
		"limit", c.alloc.Limit(),
	)

	return fmt.Errorf("%s: %w", what, err)
}

// checkReady validates the state for an operation that needs want.
func (c *Compressor[T]) checkReady(want state) error {
	switch c.state {
	case want:
		return nil
	case stateUninitialized:
		return errs.ErrNotInitialized
	case stateBroken:
		return errs.ErrInstanceUnusable
	default:
		return fmt.Errorf("%w: instance is %s", errs.ErrWrongState, c.state)
	}
}

// ClearBuffer zeroes every scratch buffer without releasing it. A slice
// returned by Compress is invalidated.
func (c *Compressor[T]) ClearBuffer() {
	clear(c.codes)
	clear(c.freq)
	clear(c.reserved)
	c.outliers.Reset()
	if c.pred != nil {
		c.pred.Clear()
	}
	if c.primary != nil {
		c.primary.Clear()
	}
	if c.fallback != nil {
		c.fallback.Clear()
	}
}

// Destroy releases every allocation, including the fallback codec, and
// returns the instance to the uninitialized state. It is idempotent and
// safe to call before Init.
func (c *Compressor[T]) Destroy() {
	if c.pred != nil {
		c.pred.Release(c.alloc)
	}
	if c.primary != nil {
		c.primary.Release(c.alloc)
	}
	if c.fallback != nil {
		c.fallback.Release(c.alloc)
	}
	device.Free(c.alloc, c.codes)
	device.Free(c.alloc, c.freq)
	device.Free(c.alloc, c.reserved)

	c.pred, c.sparse, c.primary, c.fallback = nil, nil, nil, nil
	c.codes, c.freq, c.reserved = nil, nil, nil
	c.outliers = format.OutlierSet{}
	c.ctx = nil
	c.header = section.Header{}
	c.n = 0
	c.times = nil
	c.state = stateUninitialized
}

// ExportHeader returns the header of the last compressed artifact, or the
// header the instance was initialized from.
func (c *Compressor[T]) ExportHeader() (section.Header, error) {
	if c.state == stateUninitialized {
		return section.Header{}, errs.ErrNotInitialized
	}

	return c.header, nil
}

// ExportTimeRecord returns the stage timings of the last call. After an
// asynchronous Decompress the stream must be synchronized first.
func (c *Compressor[T]) ExportTimeRecord() TimeRecord {
	out := make(TimeRecord, len(c.times))
	copy(out, c.times)

	return out
}

func (c *Compressor[T]) debugEnabled() bool {
	return c.debug || (c.ctx != nil && c.ctx.Debug)
}

func (c *Compressor[T]) logDebug(msg string, args ...any) {
	if c.debugEnabled() {
		c.logger.Debug(msg, args...)
	}
}

func (c *Compressor[T]) stream(s *device.Stream) *device.Stream {
	if s == nil {
		return c.defaultStream
	}

	return s
}
