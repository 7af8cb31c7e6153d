package dsp

import (
	"testing"
)

func TestSpectrogram_Columns(t *testing.T) {
	tests := []struct {
		name        string
		n           int
		wantColumns int
		wantBins    int
	}{
		// width = sqrt(4096) = 64 samples, 32 bins each
		{"square", 2048, 32, 32},
		// width = 14, seven full partitions plus a 2-sample remainder
		{"remainder", 100, 8, 4},
		// width = 2, one partition
		{"tiny", 2, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, err := Spectrogram(generateSinePCM(tt.n, 4, 3000), FoldSum)
			if err != nil {
				t.Fatalf("Spectrogram() error = %v", err)
			}
			if len(cols) != tt.wantColumns {
				t.Errorf("columns = %d, want %d", len(cols), tt.wantColumns)
			}
			if len(cols[0]) != tt.wantBins {
				t.Errorf("bins = %d, want %d", len(cols[0]), tt.wantBins)
			}
		})
	}
}

func TestSpectrogram_DropsSingleSampleRemainder(t *testing.T) {
	// width = int(sqrt(14)) = 3: partitions [0:3], [3:6] and a 1-sample remainder
	cols, err := Spectrogram(make([]int16, 7), FoldSum)
	if err != nil {
		t.Fatalf("Spectrogram() error = %v", err)
	}
	if len(cols) != 2 {
		t.Errorf("columns = %d, want 2", len(cols))
	}
}

func TestSpectrogram_ShortInput(t *testing.T) {
	if _, err := Spectrogram([]int16{1}, FoldSum); err != ErrInvalidInput {
		t.Errorf("Spectrogram() error = %v, want ErrInvalidInput", err)
	}
}

func TestSpectrogramImage(t *testing.T) {
	cols := []Spectrum{
		{0, 10, 100},
		{-5, 30},
	}
	img := SpectrogramImage(cols, 10)

	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 3 {
		t.Fatalf("bounds = %v, want 2x3", b)
	}

	tests := []struct {
		x, y int
		want uint8
	}{
		{0, 0, 0},
		{0, 1, 100},
		{0, 2, 255}, // clamped
		{1, 0, 0},   // negative clamped
		{1, 1, 255},
		{1, 2, 0}, // padding
	}
	for _, tt := range tests {
		if got := img.GrayAt(tt.x, tt.y).Y; got != tt.want {
			t.Errorf("pixel(%d,%d) = %d, want %d", tt.x, tt.y, got, tt.want)
		}
	}
}
