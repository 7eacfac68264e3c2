package pool

import "sync"

// SlicePool pools typed scratch slices, such as the per-worker partial
// histograms built during a compress call.
type SlicePool[T any] struct {
	pool sync.Pool
}

// NewSlicePool creates an empty SlicePool.
func NewSlicePool[T any]() *SlicePool[T] {
	return &SlicePool[T]{
		pool: sync.Pool{
			New: func() any { return &[]T{} },
		},
	}
}

// Get returns a slice of exactly size elements, all zero, and a cleanup
// function that must be called to return it to the pool.
//
// Example:
//
//	local, cleanup := pool.GetUint32Slice(booklen)
//	defer cleanup()
func (p *SlicePool[T]) Get(size int) ([]T, func()) {
	ptr, _ := p.pool.Get().(*[]T)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]T, size)
	} else {
		slice = slice[:size]
		clear(slice)
	}
	*ptr = slice

	return slice, func() { p.pool.Put(ptr) }
}

var uint32SlicePool = NewSlicePool[uint32]()

// GetUint32Slice retrieves a zeroed uint32 slice of the given length.
func GetUint32Slice(size int) ([]uint32, func()) {
	return uint32SlicePool.Get(size)
}
