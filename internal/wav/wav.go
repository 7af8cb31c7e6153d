// internal/wav/wav.go
// Package wav reads and writes 16-bit PCM RIFF/WAVE files.
// Bytes following the data chunk are carried through untouched as metadata.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// RIFF layout constants
const (
	// HeaderSize is the size of the canonical header written by Encode
	HeaderSize = 44
	// FormatPCM is the only supported format code
	FormatPCM = 1
	// BitsPerSample is the only supported bit depth
	BitsPerSample = 16

	bytesPerSample = BitsPerSample / 8
	fmtChunkSize   = 16
	fmtChunkSizeEx = 18
)

var (
	// ErrInvalidFormat indicates the data is not a supported mono/stereo 16-bit PCM WAV.
	// Callers loading many files should skip the file rather than abort.
	ErrInvalidFormat = errors.New("wav: invalid format")
	// ErrPrecondition indicates Encode was called with incomplete audio information
	ErrPrecondition = errors.New("wav: precondition failed")
)

// Mono is a single-channel 16-bit PCM recording.
type Mono struct {
	SampleRate int
	Samples    []int16
	Metadata   []byte // opaque bytes after the data chunk, nil if none
}

// Stereo is a two-channel 16-bit PCM recording split into left and right.
type Stereo struct {
	SampleRate int
	Left       []int16
	Right      []int16
	Metadata   []byte
}

// header is the decoded fmt chunk plus the location of the sample data
type header struct {
	channels   int
	sampleRate int
	dataStart  int
	dataSize   int
}

// DecodeMono decodes a mono 16-bit PCM WAV. Stereo input is rejected.
func DecodeMono(data []byte) (*Mono, error) {
	h, err := parseHeader(data, 1)
	if err != nil {
		return nil, err
	}

	n := h.dataSize / bytesPerSample
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		off := h.dataStart + i*bytesPerSample
		samples[i] = int16(binary.LittleEndian.Uint16(data[off:]))
	}

	return &Mono{
		SampleRate: h.sampleRate,
		Samples:    samples,
		Metadata:   trailing(data, h.dataStart+h.dataSize),
	}, nil
}

// DecodeStereo decodes a stereo 16-bit PCM WAV. Mono input is rejected.
func DecodeStereo(data []byte) (*Stereo, error) {
	h, err := parseHeader(data, 2)
	if err != nil {
		return nil, err
	}

	frames := h.dataSize / (bytesPerSample * 2)
	left := make([]int16, frames)
	right := make([]int16, frames)
	for i := 0; i < frames; i++ {
		off := h.dataStart + i*bytesPerSample*2
		left[i] = int16(binary.LittleEndian.Uint16(data[off:]))
		right[i] = int16(binary.LittleEndian.Uint16(data[off+2:]))
	}

	return &Stereo{
		SampleRate: h.sampleRate,
		Left:       left,
		Right:      right,
		Metadata:   trailing(data, h.dataStart+h.dataSize),
	}, nil
}

// parseHeader validates the RIFF, fmt and data chunk headers in order.
func parseHeader(data []byte, wantChannels int) (header, error) {
	var h header

	// RIFF header (12 bytes) + fmt chunk header (8 bytes) + 16 bytes of fmt body
	if len(data) < 12+8+fmtChunkSize {
		return h, fmt.Errorf("%w: file too short (%d bytes)", ErrInvalidFormat, len(data))
	}
	if string(data[0:4]) != "RIFF" {
		return h, fmt.Errorf("%w: missing RIFF magic", ErrInvalidFormat)
	}
	if string(data[8:12]) != "WAVE" {
		return h, fmt.Errorf("%w: not a WAVE file", ErrInvalidFormat)
	}
	if string(data[12:16]) != "fmt " {
		return h, fmt.Errorf("%w: missing fmt chunk", ErrInvalidFormat)
	}

	fmtSize := binary.LittleEndian.Uint32(data[16:20])
	if fmtSize != fmtChunkSize && fmtSize != fmtChunkSizeEx {
		return h, fmt.Errorf("%w: fmt chunk size %d", ErrInvalidFormat, fmtSize)
	}

	formatCode := binary.LittleEndian.Uint16(data[20:22])
	channels := int(binary.LittleEndian.Uint16(data[22:24]))
	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	bitDepth := binary.LittleEndian.Uint16(data[34:36])

	if formatCode != FormatPCM {
		return h, fmt.Errorf("%w: format code %d is not PCM", ErrInvalidFormat, formatCode)
	}
	if channels != wantChannels {
		return h, fmt.Errorf("%w: %d channels, want %d", ErrInvalidFormat, channels, wantChannels)
	}
	if bitDepth != BitsPerSample {
		return h, fmt.Errorf("%w: %d bits per sample, want %d", ErrInvalidFormat, bitDepth, BitsPerSample)
	}

	pos := 36
	if fmtSize == fmtChunkSizeEx {
		// 2-byte extension length followed by vendor data
		if len(data) < pos+2 {
			return h, fmt.Errorf("%w: truncated fmt extension", ErrInvalidFormat)
		}
		extra := int(binary.LittleEndian.Uint16(data[pos : pos+2]))
		pos += 2 + extra
	}

	if len(data) < pos+8 {
		return h, fmt.Errorf("%w: missing data chunk", ErrInvalidFormat)
	}
	if string(data[pos:pos+4]) != "data" {
		return h, fmt.Errorf("%w: expected data chunk, found %q", ErrInvalidFormat, data[pos:pos+4])
	}

	dataSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
	pos += 8

	frameSize := bytesPerSample * wantChannels
	if dataSize%frameSize != 0 {
		return h, fmt.Errorf("%w: data size %d is not a multiple of %d", ErrInvalidFormat, dataSize, frameSize)
	}
	if dataSize > len(data)-pos {
		return h, fmt.Errorf("%w: data chunk truncated (%d of %d bytes)", ErrInvalidFormat, len(data)-pos, dataSize)
	}

	h.channels = channels
	h.sampleRate = int(sampleRate)
	h.dataStart = pos
	h.dataSize = dataSize
	return h, nil
}

func trailing(data []byte, end int) []byte {
	if end >= len(data) {
		return nil
	}
	meta := make([]byte, len(data)-end)
	copy(meta, data[end:])
	return meta
}

// Encode serializes the recording with a canonical 44-byte header.
func (m *Mono) Encode() ([]byte, error) {
	if m.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate not set", ErrPrecondition)
	}
	if m.Samples == nil {
		return nil, fmt.Errorf("%w: sample count not set", ErrPrecondition)
	}

	out := putHeader(1, m.SampleRate, len(m.Samples)*bytesPerSample, len(m.Metadata))
	for _, s := range m.Samples {
		out = binary.LittleEndian.AppendUint16(out, uint16(s))
	}
	return append(out, m.Metadata...), nil
}

// Encode serializes the recording with interleaved left/right samples.
func (s *Stereo) Encode() ([]byte, error) {
	if s.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate not set", ErrPrecondition)
	}
	if s.Left == nil || s.Right == nil {
		return nil, fmt.Errorf("%w: sample count not set", ErrPrecondition)
	}
	if len(s.Left) != len(s.Right) {
		return nil, fmt.Errorf("%w: channel lengths differ (%d != %d)", ErrPrecondition, len(s.Left), len(s.Right))
	}

	out := putHeader(2, s.SampleRate, len(s.Left)*bytesPerSample*2, len(s.Metadata))
	for i := range s.Left {
		out = binary.LittleEndian.AppendUint16(out, uint16(s.Left[i]))
		out = binary.LittleEndian.AppendUint16(out, uint16(s.Right[i]))
	}
	return append(out, s.Metadata...), nil
}

// putHeader returns the 44-byte header with capacity for the payload.
// The RIFF size counts everything after its own field, metadata included.
func putHeader(channels, sampleRate, dataSize, metaSize int) []byte {
	out := make([]byte, 0, HeaderSize+dataSize+metaSize)
	blockAlign := channels * bytesPerSample

	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(HeaderSize+dataSize+metaSize-8))
	out = append(out, "WAVE"...)

	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, fmtChunkSize)
	out = binary.LittleEndian.AppendUint16(out, FormatPCM)
	out = binary.LittleEndian.AppendUint16(out, uint16(channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate*blockAlign))
	out = binary.LittleEndian.AppendUint16(out, uint16(blockAlign))
	out = binary.LittleEndian.AppendUint16(out, BitsPerSample)

	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dataSize))
	return out
}

// ReadMonoFile loads and decodes a mono WAV file from disk.
func ReadMonoFile(path string) (*Mono, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	m, err := DecodeMono(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// WriteMonoFile encodes m and writes it to path, replacing any existing file.
func WriteMonoFile(path string, m *Mono) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return nil
}
