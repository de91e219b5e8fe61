package pricing

import (
	"math"
	"sort"
)

// Config holds reference-price statistic settings.
type Config struct {
	MinSamples  int     // below this after filtering, use the median
	BucketWidth float64 // mode bucket width in reference currency
	ModeShare   float64 // min share of samples the mode bucket needs
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinSamples:  4,
		BucketWidth: 0.5,
		ModeShare:   0.2,
	}
}

// ReferencePrice reduces one quote's listing prices to a single learned
// price. Outliers outside [Q1-1.5*IQR, Q3+1.5*IQR] are removed first;
// small filtered sets fall back to the median; otherwise the most
// frequent fixed-width bucket wins if it holds at least ModeShare of
// the samples, else the median again. Empty input reports ok=false.
func ReferencePrice(prices []float64, cfg Config) (float64, bool) {
	if len(prices) == 0 {
		return 0, false
	}

	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)

	filtered := iqrFilter(sorted)
	if len(filtered) == 0 {
		// Degenerate filter result; the raw median is still defined.
		return median(sorted), true
	}

	if len(filtered) < cfg.MinSamples {
		return median(filtered), true
	}

	if mode, ok := bucketMode(filtered, cfg); ok {
		return mode, true
	}
	return median(filtered), true
}

// iqrFilter removes points outside the 1.5*IQR fences. Input must be
// sorted; output shares no storage with the input slice.
func iqrFilter(sorted []float64) []float64 {
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	lo := q1 - 1.5*iqr
	hi := q3 + 1.5*iqr

	out := make([]float64, 0, len(sorted))
	for _, p := range sorted {
		if p >= lo && p <= hi {
			out = append(out, p)
		}
	}
	return out
}

// bucketMode bins sorted values into fixed-width buckets and returns
// the median of the fullest bucket, provided that bucket holds at least
// cfg.ModeShare of the samples. Ties break toward the cheaper bucket.
func bucketMode(sorted []float64, cfg Config) (float64, bool) {
	counts := make(map[int64]int)
	members := make(map[int64][]float64)
	for _, p := range sorted {
		b := int64(math.Floor(p / cfg.BucketWidth))
		counts[b]++
		members[b] = append(members[b], p)
	}

	best := int64(math.MaxInt64)
	bestCount := 0
	for b, n := range counts {
		if n > bestCount || (n == bestCount && b < best) {
			best = b
			bestCount = n
		}
	}

	if float64(bestCount) < cfg.ModeShare*float64(len(sorted)) {
		return 0, false
	}
	return median(members[best]), true
}

// median of a sorted slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// quantile computes the q-th quantile of a sorted slice using linear
// interpolation between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
