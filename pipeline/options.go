package pipeline

import (
	"log/slog"

	"github.com/arloliu/szpipe/internal/options"
)

type settings struct {
	logger      *slog.Logger
	memoryLimit int64
	debug       bool
}

// Option configures a Compressor.
type Option = options.Option[*settings]

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return options.NoError(func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	})
}

// WithMemoryLimit caps the device memory the instance may allocate, in
// bytes. 0 means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return options.NoError(func(s *settings) {
		s.memoryLimit = bytes
	})
}

// WithDebug logs codec decisions and stage timings at debug level
// regardless of the Context's Debug field.
func WithDebug(enabled bool) Option {
	return options.NoError(func(s *settings) {
		s.debug = enabled
	})
}
