package pipeline

import (
	"log/slog"
	"time"
)

// Stage names recorded in the time record.
const (
	StageRange         = "range"
	StagePredict       = "predict"
	StageSparseEncode  = "sparse-encode"
	StageHistogram     = "histogram"
	StageDecide        = "decide"
	StageEncode        = "encode"
	StageCollect       = "collect"
	StageValidate      = "validate"
	StageSparseDecode  = "sparse-decode"
	StageEntropyDecode = "entropy-decode"
	StageReconstruct   = "reconstruct"
)

// TimeEntry is the wall time of one pipeline stage.
type TimeEntry struct {
	Stage   string
	Elapsed time.Duration
}

// TimeRecord lists stage timings in execution order.
type TimeRecord []TimeEntry

// Total returns the summed elapsed time.
func (r TimeRecord) Total() time.Duration {
	var total time.Duration
	for _, e := range r {
		total += e.Elapsed
	}

	return total
}

// Attrs returns the record as slog attributes, one per stage.
func (r TimeRecord) Attrs() []any {
	attrs := make([]any, 0, len(r)+1)
	for _, e := range r {
		attrs = append(attrs, slog.Duration(e.Stage, e.Elapsed))
	}

	return append(attrs, slog.Duration("total", r.Total()))
}

func (c *Compressor[T]) record(stage string, start time.Time) {
	c.times = append(c.times, TimeEntry{Stage: stage, Elapsed: time.Since(start)})
}

// timed wraps a kernel so its run time lands in the time record.
func (c *Compressor[T]) timed(stage string, fn func() error) func() error {
	return func() error {
		defer c.record(stage, time.Now())
		return fn()
	}
}
