package config

import (
	"fmt"
	"math"

	"github.com/arloliu/szpipe/entropy"
	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/format"
	"github.com/arloliu/szpipe/internal/options"
)

// Defaults applied by NewContext and Parse.
const (
	DefaultRadius      = 512
	DefaultErrCtrlBits = 16
	DefaultErrorBound  = 1e-4

	maxChunkSize = 1 << 30
)

// Context is the compression configuration of one pipeline instance.
//
// Everything a decoder needs from it is recorded in the artifact header;
// only the compress side reads a Context.
type Context struct {
	Shape       format.Shape     `yaml:"shape"`
	ErrorBound  float64          `yaml:"error_bound"`
	BoundMode   format.BoundMode `yaml:"bound_mode"`
	Radius      int              `yaml:"radius"`
	ErrCtrlBits int              `yaml:"err_ctrl_bits"`

	Predictor format.PredictorType `yaml:"predictor"`
	Sparse    format.SparseType    `yaml:"sparse"`
	Codec     format.CodecType     `yaml:"codec"`

	// FallbackCompression is the back end of the fallback coder.
	FallbackCompression format.CompressionType `yaml:"fallback_compression"`
	// FallbackThreshold is the per-mille share of the dominant symbol at
	// which the fallback coder is chosen outright. 0 disables the rule.
	FallbackThreshold int `yaml:"fallback_threshold"`
	ChunkSize         int `yaml:"chunk_size"`

	BigEndian bool `yaml:"big_endian"`
	Debug     bool `yaml:"debug"`
}

// Option configures a Context.
type Option = options.Option[*Context]

// Default returns a Context for shape with every other field at its
// default.
func Default(shape format.Shape) *Context {
	return &Context{
		Shape:               shape.Normalize(),
		ErrorBound:          DefaultErrorBound,
		BoundMode:           format.BoundAbs,
		Radius:              DefaultRadius,
		ErrCtrlBits:         DefaultErrCtrlBits,
		Predictor:           format.PredictorLorenzo,
		Sparse:              format.SparseVector,
		Codec:               format.CodecHuffman32,
		FallbackCompression: format.CompressionZstd,
		FallbackThreshold:   entropy.DefaultFallbackThreshold,
		ChunkSize:           entropy.DefaultChunkSize,
	}
}

// NewContext creates a validated Context for shape.
func NewContext(shape format.Shape, opts ...Option) (*Context, error) {
	ctx := Default(shape)
	if err := options.Apply(ctx, opts...); err != nil {
		return nil, err
	}

	if err := ctx.Validate(); err != nil {
		return nil, err
	}

	return ctx, nil
}

// Apply applies opts on top of c, for example over a loaded file, and
// validates the result.
func (c *Context) Apply(opts ...Option) error {
	if err := options.Apply(c, opts...); err != nil {
		return err
	}

	return c.Validate()
}

// Booklen returns the error-control alphabet size, 2*Radius.
func (c *Context) Booklen() int {
	return 2 * c.Radius
}

// Validate checks every field.
func (c *Context) Validate() error {
	c.Shape = c.Shape.Normalize()
	if err := c.Shape.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrInvalidShape, err)
	}

	if !(c.ErrorBound > 0) || math.IsInf(c.ErrorBound, 1) {
		return fmt.Errorf("%w: %g", errs.ErrInvalidBound, c.ErrorBound)
	}
	if !c.BoundMode.Valid() {
		return fmt.Errorf("%w: error-bound mode %d", errs.ErrInvalidConfig, c.BoundMode)
	}

	if c.ErrCtrlBits != 8 && c.ErrCtrlBits != 16 {
		return fmt.Errorf("%w: error-control width %d, want 8 or 16", errs.ErrInvalidConfig, c.ErrCtrlBits)
	}
	if c.Radius < 1 || c.Booklen() > 1<<c.ErrCtrlBits {
		return fmt.Errorf("%w: radius %d with %d-bit error control", errs.ErrInvalidConfig, c.Radius, c.ErrCtrlBits)
	}

	if !c.Predictor.Valid() {
		return fmt.Errorf("%w: predictor %d", errs.ErrInvalidConfig, c.Predictor)
	}
	if !c.Sparse.Valid() {
		return fmt.Errorf("%w: sparse codec %d", errs.ErrInvalidConfig, c.Sparse)
	}
	if !c.Codec.Valid() {
		return fmt.Errorf("%w: entropy codec %d", errs.ErrInvalidConfig, c.Codec)
	}
	if !c.FallbackCompression.Valid() {
		return fmt.Errorf("%w: fallback compression %d", errs.ErrInvalidConfig, c.FallbackCompression)
	}
	if c.FallbackThreshold < 0 || c.FallbackThreshold > 1000 {
		return fmt.Errorf("%w: fallback threshold %d per mille", errs.ErrInvalidConfig, c.FallbackThreshold)
	}
	if c.ChunkSize < 1 || c.ChunkSize > maxChunkSize {
		return fmt.Errorf("%w: chunk size %d", errs.ErrInvalidConfig, c.ChunkSize)
	}

	return nil
}

// WithErrorBound sets the error bound and how it is interpreted.
func WithErrorBound(eb float64, mode format.BoundMode) Option {
	return options.New(func(c *Context) error {
		if !(eb > 0) || math.IsInf(eb, 1) {
			return fmt.Errorf("%w: %g", errs.ErrInvalidBound, eb)
		}
		if !mode.Valid() {
			return fmt.Errorf("%w: error-bound mode %d", errs.ErrInvalidConfig, mode)
		}
		c.ErrorBound, c.BoundMode = eb, mode

		return nil
	})
}

// WithRadius sets the quantization radius. The alphabet has 2*r symbols.
func WithRadius(r int) Option {
	return options.NoError(func(c *Context) {
		c.Radius = r
	})
}

// WithErrCtrlBits sets the error-control width, 8 or 16.
func WithErrCtrlBits(bits int) Option {
	return options.NoError(func(c *Context) {
		c.ErrCtrlBits = bits
	})
}

// WithPredictor selects the predictor.
func WithPredictor(p format.PredictorType) Option {
	return options.New(func(c *Context) error {
		if !p.Valid() {
			return fmt.Errorf("%w: predictor %d", errs.ErrInvalidConfig, p)
		}
		c.Predictor = p

		return nil
	})
}

// WithSparse selects the outlier codec.
func WithSparse(s format.SparseType) Option {
	return options.New(func(c *Context) error {
		if !s.Valid() {
			return fmt.Errorf("%w: sparse codec %d", errs.ErrInvalidConfig, s)
		}
		c.Sparse = s

		return nil
	})
}

// WithCodec selects the primary entropy codec width.
func WithCodec(t format.CodecType) Option {
	return options.New(func(c *Context) error {
		if !t.Valid() {
			return fmt.Errorf("%w: entropy codec %d", errs.ErrInvalidConfig, t)
		}
		c.Codec = t

		return nil
	})
}

// WithFallbackCompression selects the back end of the fallback coder.
func WithFallbackCompression(t format.CompressionType) Option {
	return options.New(func(c *Context) error {
		if !t.Valid() {
			return fmt.Errorf("%w: fallback compression %d", errs.ErrInvalidConfig, t)
		}
		c.FallbackCompression = t

		return nil
	})
}

// WithFallbackThreshold sets the dominant-symbol share, in per mille, at
// which the fallback coder is chosen. 0 disables the rule.
func WithFallbackThreshold(permille int) Option {
	return options.NoError(func(c *Context) {
		c.FallbackThreshold = permille
	})
}

// WithChunkSize sets the number of symbols per Huffman chunk.
func WithChunkSize(n int) Option {
	return options.NoError(func(c *Context) {
		c.ChunkSize = n
	})
}

// WithDebug enables debug logging of codec decisions and stage timings.
func WithDebug(enabled bool) Option {
	return options.NoError(func(c *Context) {
		c.Debug = enabled
	})
}

// WithLittleEndian writes fixed-width fields little-endian. This is the
// default.
func WithLittleEndian() Option {
	return options.NoError(func(c *Context) {
		c.BigEndian = false
	})
}

// WithBigEndian writes fixed-width fields big-endian.
func WithBigEndian() Option {
	return options.NoError(func(c *Context) {
		c.BigEndian = true
	})
}
