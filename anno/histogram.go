package anno

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// maxHistogramBuckets bounds the number of buckets an equi-depth histogram
// can have, regardless of how many distinct values a key has.
const maxHistogramBuckets = 250

// maxHistogramSample bounds how many values are sampled per key before
// building a histogram, keeping statistics_update cheap on large stores.
const maxHistogramSample = 2500

// Histogram is an equi-depth histogram over a key's string values, used to
// estimate selectivity for guess_count and guess_count_regex without
// scanning the full inverted index.
//
// Values are compared lexically (byte order) rather than numerically;
// annotation values are arbitrary UTF-8 strings per the data model, so the
// histogram boundaries are themselves strings.
type Histogram struct {
	// boundaries holds one value per bucket edge: len(boundaries)-1 buckets,
	// each covering [boundaries[i], boundaries[i+1]], both edges inclusive
	// (see Selectivity).
	boundaries []string
	// universe is the total number of annotations the histogram was built
	// from (post-sampling count is NOT the universe; see NewHistogram).
	universe int
}

// NewHistogram builds an equi-depth histogram from values, which need not
// be sorted or deduplicated. universe is the true number of annotations
// for the key (the sample may be smaller than the universe).
//
// The bucket count is min(maxHistogramBuckets, len(sample)-1), so a key
// with fewer than two sampled values (duplicates counted) yields a zero-bucket
// histogram and guess_count falls back to returning universe directly
// (full selectivity).
func NewHistogram(values []string, universe int) *Histogram {
	sample := sampleValues(values, maxHistogramSample)
	sort.Strings(sample)

	h := &Histogram{universe: universe}
	if len(sample) < 2 {
		return h
	}

	bucketCount := len(sample) - 1
	if bucketCount > maxHistogramBuckets {
		bucketCount = maxHistogramBuckets
	}

	// Equi-depth: quantile positions evenly spaced through the sample via
	// stat.Quantile over the sample's rank order (ranks stand in for the
	// sample's numeric-free ordering).
	ranks := make([]float64, len(sample))
	for i := range ranks {
		ranks[i] = float64(i)
	}

	h.boundaries = make([]string, bucketCount+1)
	for i := 0; i <= bucketCount; i++ {
		q := float64(i) / float64(bucketCount)
		rank := stat.Quantile(q, stat.Empirical, ranks, nil)
		idx := int(rank)
		if idx >= len(sample) {
			idx = len(sample) - 1
		}
		if idx < 0 {
			idx = 0
		}
		h.boundaries[i] = sample[idx]
	}
	return h
}

// sampleValues deterministically takes an evenly-strided subset of values
// of size at most n, preserving the design note that histogram
// construction must be reproducible sample-by-sample rather than using a
// random sample.
func sampleValues(values []string, n int) []string {
	if len(values) <= n {
		out := make([]string, len(values))
		copy(out, values)
		return out
	}
	out := make([]string, 0, n)
	stride := float64(len(values)) / float64(n)
	for i := 0; i < n; i++ {
		idx := int(float64(i) * stride)
		if idx >= len(values) {
			idx = len(values) - 1
		}
		out = append(out, values[idx])
	}
	return out
}

// Selectivity estimates the fraction of the key's values falling in
// [lower, upper], inclusive, as the fraction of histogram buckets whose
// range overlaps that interval.
func (h *Histogram) Selectivity(lower, upper string) float64 {
	if h == nil || len(h.boundaries) < 2 {
		return 1.0
	}
	bucketCount := len(h.boundaries) - 1
	overlapping := 0
	for i := 0; i < bucketCount; i++ {
		bucketLow, bucketHigh := h.boundaries[i], h.boundaries[i+1]
		if bucketHigh < lower || bucketLow > upper {
			continue
		}
		overlapping++
	}
	return float64(overlapping) / float64(bucketCount)
}

// GuessCount returns floor(selectivity(lower, upper) * universe).
func (h *Histogram) GuessCount(lower, upper string) int {
	if h == nil {
		return 0
	}
	return int(h.Selectivity(lower, upper) * float64(h.universe))
}

// Universe returns the total annotation count the histogram summarizes.
func (h *Histogram) Universe() int {
	if h == nil {
		return 0
	}
	return h.universe
}
