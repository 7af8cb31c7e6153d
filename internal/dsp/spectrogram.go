package dsp

import (
	"image"
	"image/color"
	"math"
)

// Spectrogram splits pcm into consecutive partitions of floor(sqrt(2*len))
// samples and analyzes each one. Partitions shorter than 2 samples are skipped.
func Spectrogram(pcm []int16, mode FoldMode) ([]Spectrum, error) {
	if len(pcm) < 2 {
		return nil, ErrInvalidInput
	}

	width := int(math.Sqrt(float64(len(pcm) * 2)))
	var columns []Spectrum
	for start := 0; start < len(pcm); start += width {
		end := min(start+width, len(pcm))
		if end-start < 2 {
			break
		}
		col, err := AnalyzeFold(pcm[start:end], mode)
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// SpectrogramImage renders columns as a grayscale image, one pixel column per
// spectrum and one row per bin. Values are multiplied by gain and clamped to 0-255.
func SpectrogramImage(columns []Spectrum, gain float64) *image.Gray {
	height := 0
	for _, c := range columns {
		height = max(height, len(c))
	}

	img := image.NewGray(image.Rect(0, 0, len(columns), height))
	for x, col := range columns {
		for y, v := range col {
			px := math.Max(0, math.Min(255, v*gain))
			img.SetGray(x, y, color.Gray{Y: uint8(px)})
		}
	}
	return img
}
