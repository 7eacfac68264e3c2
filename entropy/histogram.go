package entropy

import (
	"fmt"

	"github.com/arloliu/szpipe/device"
	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/internal/pool"
)

// Histogram counts symbol occurrences of codes into freq, which must hold
// booklen entries and is overwritten. Each worker counts into a pooled
// partial histogram which is then reduced.
func Histogram(codes []uint16, freq []uint32, workers int) error {
	booklen := len(freq)
	clear(freq)

	n := len(codes)
	if n == 0 {
		return nil
	}

	workers = max(1, min(workers, n/4096+1))
	grain := (n + workers - 1) / workers

	partials := make([][]uint32, workers)
	cleanups := make([]func(), workers)
	defer func() {
		for _, c := range cleanups {
			if c != nil {
				c()
			}
		}
	}()
	for w := range partials {
		partials[w], cleanups[w] = pool.GetUint32Slice(booklen)
	}

	err := device.ParallelForErr(workers, n, grain, func(lo, hi int) error {
		local := partials[lo/grain]
		for i, c := range codes[lo:hi] {
			if int(c) >= booklen {
				return fmt.Errorf("%w: code %d at %d, booklen %d", errs.ErrSymbolOutOfRange, c, lo+i, booklen)
			}
			local[c]++
		}

		return nil
	})
	if err != nil {
		return err
	}

	for _, local := range partials {
		for s, c := range local {
			freq[s] += c
		}
	}

	return nil
}
