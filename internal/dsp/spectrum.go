// internal/dsp/spectrum.go
package dsp

import (
	"errors"
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

var (
	// ErrInvalidInput indicates the PCM buffer is too short to analyze
	ErrInvalidInput = errors.New("at least 2 samples are required for spectral analysis")
	// ErrInvalidFoldMode indicates an unknown spectrum fold mode
	ErrInvalidFoldMode = errors.New("unknown spectrum fold mode")
)

// FoldMode selects how a bin and its mirror are combined into one spectrum value.
type FoldMode string

const (
	// FoldSum adds |Re+Im| of a bin and its mirror. Templates recorded by
	// earlier versions of the detector were built this way.
	FoldSum FoldMode = "sum"
	// FoldMagnitude adds the complex moduli of a bin and its mirror.
	FoldMagnitude FoldMode = "magnitude"
)

// ParseFoldMode converts a config string to a FoldMode
func ParseFoldMode(s string) (FoldMode, error) {
	switch FoldMode(s) {
	case FoldSum, FoldMagnitude:
		return FoldMode(s), nil
	case "":
		return FoldSum, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFoldMode, s)
	}
}

// Spectrum is a folded magnitude spectrum with FFTSize/2 bins.
type Spectrum []float64

// FFTSize returns the largest power of two not greater than n, or 0 for n < 1.
func FFTSize(n int) int {
	if n < 1 {
		return 0
	}
	size := 1
	for size*2 <= n {
		size *= 2
	}
	return size
}

// Analyze computes the folded spectrum of pcm using FoldSum.
func Analyze(pcm []int16) (Spectrum, error) {
	return AnalyzeFold(pcm, FoldSum)
}

// AnalyzeFold computes a spectrum from the first FFTSize(len(pcm)) samples.
// Samples are Hamming windowed, transformed and scaled by 1/N, then bin k is
// folded with bin N-1-k. The output has N/2 values.
func AnalyzeFold(pcm []int16, mode FoldMode) (Spectrum, error) {
	if len(pcm) < 2 {
		return nil, ErrInvalidInput
	}
	if mode != FoldSum && mode != FoldMagnitude {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFoldMode, mode)
	}

	n := FFTSize(len(pcm))
	w := window.Hamming(n)

	frame := make([]float64, n)
	for i := 0; i < n; i++ {
		frame[i] = float64(pcm[i]) * w[i]
	}

	bins := fft.FFTReal(frame)
	scale := 1.0 / float64(n)

	spectrum := make(Spectrum, n/2)
	for k := range spectrum {
		left := bins[k]
		right := bins[n-1-k]
		spectrum[k] = fold(left, mode)*scale + fold(right, mode)*scale
	}
	return spectrum, nil
}

func fold(c complex128, mode FoldMode) float64 {
	if mode == FoldMagnitude {
		return math.Hypot(real(c), imag(c))
	}
	return math.Abs(real(c) + imag(c))
}

// Peak returns the index of the largest bin, or -1 for an empty spectrum
func (s Spectrum) Peak() int {
	peak := -1
	max := math.Inf(-1)
	for i, v := range s {
		if v > max {
			max = v
			peak = i
		}
	}
	return peak
}
