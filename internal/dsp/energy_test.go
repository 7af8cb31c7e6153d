package dsp

import (
	"math"
	"testing"
)

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		count   int
		want    float64
	}{
		{"constant", []int16{100, 100, 100, 100}, 4, 100},
		{"negative constant", []int16{-2000, -2000}, 2, 2000},
		{"three four", []int16{3, 4}, 2, math.Sqrt(12.5)},
		{"partial count", []int16{10, 10, 9999}, 2, 10},
		{"silence", []int16{0, 0, 0}, 3, 0},
		{"full scale", []int16{math.MinInt16}, 1, 32768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RMS(tt.samples, tt.count)
			if err != nil {
				t.Fatalf("RMS() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RMS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRMS_InvalidCount(t *testing.T) {
	samples := []int16{1, 2, 3}
	for _, count := range []int{0, -1, 4} {
		if _, err := RMS(samples, count); err != ErrInvalidCount {
			t.Errorf("RMS(count=%d) error = %v, want ErrInvalidCount", count, err)
		}
	}
	if _, err := RMS(nil, 1); err != ErrInvalidCount {
		t.Errorf("RMS(nil) error = %v, want ErrInvalidCount", err)
	}
}

func TestIntensity(t *testing.T) {
	if got := Intensity(0); got != 0 {
		t.Errorf("Intensity(0) = %v, want 0", got)
	}
	if got := Intensity(math.MaxInt16); got != 1 {
		t.Errorf("Intensity(max) = %v, want 1", got)
	}
}

func TestRelativeHistogram(t *testing.T) {
	tests := []struct {
		name    string
		in      Spectrum
		buckets int
		want    []float64
	}{
		{"two buckets", Spectrum{1, 1, 2, 4}, 2, []float64{0.25, 0.75}},
		{"identity", Spectrum{1, 3}, 2, []float64{0.25, 0.75}},
		{"uneven split", Spectrum{1, 1, 1, 1, 1}, 2, []float64{0.4, 0.6}},
		{"more buckets than bins", Spectrum{2, 2}, 8, []float64{0.5, 0.5}},
		{"silent", Spectrum{0, 0, 0, 0}, 2, []float64{0, 0}},
		{"zero buckets", Spectrum{1, 2}, 0, nil},
		{"empty spectrum", Spectrum{}, 4, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RelativeHistogram(tt.in, tt.buckets)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d (%v)", len(got), len(tt.want), got)
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-12 {
					t.Errorf("hist[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRelativeHistogram_SumsToOne(t *testing.T) {
	spec, err := Analyze(generateSinePCM(2048, 11, 8000))
	if err != nil {
		t.Fatalf("Analyze error = %v", err)
	}
	var sum float64
	for _, v := range RelativeHistogram(spec, 64) {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("histogram sum = %v, want 1", sum)
	}
}
