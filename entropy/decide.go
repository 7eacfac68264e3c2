package entropy

// DefaultFallbackThreshold is the per-mille share of the most frequent
// symbol at or above which the fallback coder is chosen.
const DefaultFallbackThreshold = 999

// Decision is the outcome of Decide.
type Decision struct {
	UseFallback bool
	// Symbol is the most frequent symbol and Count its occurrences.
	Symbol int
	Count  uint32
	// Permille is Count as a share of the stream, rounded down.
	Permille int
}

// Decide picks the fallback coder when the most frequent symbol of freq
// makes up at least thresholdPermille/1000 of the n symbols. A threshold of
// 0 disables the rule. Ties between symbols resolve to the lowest symbol.
//
// A primary codec that passes Decide may still be rejected by its own
// Prepare if the code it builds is too long.
func Decide(freq []uint32, n int, thresholdPermille int) Decision {
	var d Decision
	for s, c := range freq {
		if c > d.Count {
			d.Symbol, d.Count = s, c
		}
	}

	if n <= 0 {
		return d
	}

	count, total := uint64(d.Count), uint64(n) //nolint: gosec
	d.Permille = int(count * 1000 / total)     //nolint: gosec
	if thresholdPermille > 0 && count*1000 >= total*uint64(thresholdPermille) {
		d.UseFallback = true
	}

	return d
}
