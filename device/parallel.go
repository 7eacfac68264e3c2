package device

import (
	"sync"
	"sync/atomic"
)

// ParallelFor splits [0, n) into ranges of grain elements and runs fn over
// them on up to workers goroutines. Ranges are handed out in ascending
// order; fn must not assume any ordering between concurrent calls.
func ParallelFor(workers, n, grain int, fn func(lo, hi int)) {
	_ = ParallelForErr(workers, n, grain, func(lo, hi int) error {
		fn(lo, hi)
		return nil
	})
}

// ParallelForErr is ParallelFor for range functions that can fail. It
// returns the error of the lowest failing range; ranges not yet started when
// a failure is observed are skipped.
func ParallelForErr(workers, n, grain int, fn func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	if grain < 1 {
		grain = 1
	}

	chunks := (n + grain - 1) / grain
	workers = max(1, min(workers, chunks))

	if workers == 1 {
		for lo := 0; lo < n; lo += grain {
			if err := fn(lo, min(lo+grain, n)); err != nil {
				return err
			}
		}

		return nil
	}

	var (
		next     atomic.Int64
		failed   atomic.Bool
		mu       sync.Mutex
		firstErr error
		firstIdx = chunks
		wg       sync.WaitGroup
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !failed.Load() {
				c := int(next.Add(1) - 1)
				if c >= chunks {
					return
				}

				lo := c * grain
				if err := fn(lo, min(lo+grain, n)); err != nil {
					mu.Lock()
					if c < firstIdx {
						firstIdx, firstErr = c, err
					}
					mu.Unlock()
					failed.Store(true)

					return
				}
			}
		}()
	}
	wg.Wait()

	return firstErr
}

// Chunks returns the number of grain-sized ranges covering n elements.
func Chunks(n, grain int) int {
	if n <= 0 || grain < 1 {
		return 0
	}

	return (n + grain - 1) / grain
}
