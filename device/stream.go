package device

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/internal/options"
)

const streamQueueDepth = 64

type kernel struct {
	name string
	fn   func() error
}

// Stream is an ordered kernel queue.
//
// A Stream created with NewStream executes kernels on its own goroutine, so
// Launch returns as soon as the kernel is queued. NewInlineStream executes
// each kernel inside Launch; it is the implicit default stream used when a
// caller passes nil.
//
// A Stream is safe for use by one producer at a time.
type Stream struct {
	inline  bool
	workers int

	queue   chan kernel
	pending sync.WaitGroup
	done    chan struct{}

	mu     sync.Mutex
	err    error
	closed bool
}

// StreamOption configures a Stream.
type StreamOption = options.Option[*Stream]

// WithWorkers sets the fan-out width kernels on the stream should use.
// Values below 1 are ignored.
func WithWorkers(n int) StreamOption {
	return options.NoError(func(s *Stream) {
		if n >= 1 {
			s.workers = n
		}
	})
}

// NewStream creates an asynchronous stream. Close must be called to stop its
// goroutine.
func NewStream(opts ...StreamOption) *Stream {
	s := newStream(false, opts...)
	s.queue = make(chan kernel, streamQueueDepth)
	s.done = make(chan struct{})

	go s.run()

	return s
}

// NewInlineStream creates a stream that runs kernels synchronously inside
// Launch.
func NewInlineStream(opts ...StreamOption) *Stream {
	return newStream(true, opts...)
}

func newStream(inline bool, opts ...StreamOption) *Stream {
	s := &Stream{
		inline:  inline,
		workers: runtime.GOMAXPROCS(0),
	}
	_ = options.Apply(s, opts...)

	return s
}

// Workers returns the fan-out width kernels should pass to ParallelFor.
func (s *Stream) Workers() int {
	return s.workers
}

// IsInline reports whether kernels run synchronously inside Launch.
func (s *Stream) IsInline() bool {
	return s.inline
}

// Launch enqueues a kernel. The kernel is skipped if an earlier kernel on the
// stream failed and the error has not yet been collected by Synchronize.
func (s *Stream) Launch(name string, fn func() error) {
	s.mu.Lock()
	if s.closed {
		if s.err == nil {
			s.err = fmt.Errorf("%s: %w", name, errs.ErrStreamClosed)
		}
		s.mu.Unlock()

		return
	}
	s.mu.Unlock()

	if s.inline {
		s.exec(kernel{name: name, fn: fn})
		return
	}

	s.pending.Add(1)
	s.queue <- kernel{name: name, fn: fn}
}

// Synchronize blocks until every launched kernel has finished, then returns
// and clears the first recorded error.
func (s *Stream) Synchronize() error {
	s.pending.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.err
	s.err = nil

	return err
}

// Close drains the stream and stops its goroutine. It returns any error not
// yet collected by Synchronize. Close is idempotent.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if !s.inline {
		close(s.queue)
		<-s.done
	}

	return s.Synchronize()
}

func (s *Stream) run() {
	defer close(s.done)

	for k := range s.queue {
		s.exec(k)
		s.pending.Done()
	}
}

func (s *Stream) exec(k kernel) {
	s.mu.Lock()
	failed := s.err != nil
	s.mu.Unlock()

	if failed {
		return
	}

	if err := runKernel(k); err != nil {
		s.mu.Lock()
		if s.err == nil {
			s.err = err
		}
		s.mu.Unlock()
	}
}

func runKernel(k kernel) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %w: %v", k.name, errs.ErrKernelPanic, r)
		}
	}()

	if err := k.fn(); err != nil {
		return fmt.Errorf("%s: %w", k.name, err)
	}

	return nil
}
