package dsp

import (
	"errors"
	"math"
)

// ErrInvalidCount indicates a sample count that is non-positive or exceeds the buffer
var ErrInvalidCount = errors.New("sample count must be positive and within the buffer length")

// RMS returns the root-mean-square amplitude of the first count samples.
func RMS(samples []int16, count int) (float64, error) {
	if count <= 0 || count > len(samples) {
		return 0, ErrInvalidCount
	}

	var sum float64
	for _, s := range samples[:count] {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(count)), nil
}

// Intensity maps an RMS value onto 0.0-1.0 relative to full-scale int16.
func Intensity(rms float64) float64 {
	return rms / math.MaxInt16
}

// RelativeHistogram partitions s into the given number of contiguous,
// near-equal buckets and returns each bucket's share of the total.
// A silent spectrum yields all zeros.
func RelativeHistogram(s Spectrum, buckets int) []float64 {
	if buckets <= 0 || len(s) == 0 {
		return nil
	}
	if buckets > len(s) {
		buckets = len(s)
	}

	hist := make([]float64, buckets)
	var total float64
	for b := 0; b < buckets; b++ {
		start := b * len(s) / buckets
		end := (b + 1) * len(s) / buckets
		for _, v := range s[start:end] {
			hist[b] += v
		}
		total += hist[b]
	}

	if total == 0 {
		return hist
	}
	for b := range hist {
		hist[b] /= total
	}
	return hist
}
