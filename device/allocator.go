package device

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/arloliu/szpipe/errs"
)

// Allocator accounts device buffers against a byte budget. A limit of 0
// means unlimited. A nil *Allocator is valid and unlimited.
type Allocator struct {
	limit int64
	inUse atomic.Int64
	peak  atomic.Int64
}

// NewAllocator creates an allocator with the given byte limit.
func NewAllocator(limit int64) *Allocator {
	if limit < 0 {
		limit = 0
	}

	return &Allocator{limit: limit}
}

// Limit returns the byte budget, 0 for unlimited.
func (a *Allocator) Limit() int64 {
	if a == nil {
		return 0
	}

	return a.limit
}

// InUse returns the bytes currently reserved.
func (a *Allocator) InUse() int64 {
	if a == nil {
		return 0
	}

	return a.inUse.Load()
}

// Peak returns the high-water mark of InUse.
func (a *Allocator) Peak() int64 {
	if a == nil {
		return 0
	}

	return a.peak.Load()
}

// Reserve accounts n bytes, failing with ErrOutOfDeviceMemory when the
// budget would be exceeded.
func (a *Allocator) Reserve(n int64) error {
	if a == nil || n <= 0 {
		return nil
	}

	for {
		cur := a.inUse.Load()
		next := cur + n
		if a.limit > 0 && next > a.limit {
			return fmt.Errorf("%w: need %d bytes, %d of %d in use", errs.ErrOutOfDeviceMemory, n, cur, a.limit)
		}

		if a.inUse.CompareAndSwap(cur, next) {
			a.updatePeak(next)
			return nil
		}
	}
}

// Release returns n bytes to the budget.
func (a *Allocator) Release(n int64) {
	if a == nil || n <= 0 {
		return
	}

	a.inUse.Add(-n)
}

func (a *Allocator) updatePeak(v int64) {
	for {
		p := a.peak.Load()
		if v <= p || a.peak.CompareAndSwap(p, v) {
			return
		}
	}
}

// Alloc reserves and allocates a zeroed slice of n elements.
func Alloc[T any](a *Allocator, n int) ([]T, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", errs.ErrOutOfDeviceMemory, n)
	}

	if err := a.Reserve(SizeOf[T](n)); err != nil {
		return nil, err
	}

	return make([]T, n), nil
}

// Free releases the bytes held by s. The caller must drop its reference.
func Free[T any](a *Allocator, s []T) {
	a.Release(SizeOf[T](cap(s)))
}

// SizeOf returns the byte size of n elements of T.
func SizeOf[T any](n int) int64 {
	var zero T
	return int64(unsafe.Sizeof(zero)) * int64(n)
}
