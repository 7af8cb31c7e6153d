package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// generateRamp creates a deterministic sequence covering the int16 range
func generateRamp(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16((i*7919)%65536 - 32768)
	}
	return samples
}

// buildWAV assembles a WAV by hand so tests don't depend on Encode
func buildWAV(fmtSize uint32, formatCode, channels, bitDepth uint16, extra []byte, payload []byte, meta []byte) []byte {
	var b []byte
	b = append(b, "RIFF"...)
	b = binary.LittleEndian.AppendUint32(b, 0)
	b = append(b, "WAVE"...)
	b = append(b, "fmt "...)
	b = binary.LittleEndian.AppendUint32(b, fmtSize)
	b = binary.LittleEndian.AppendUint16(b, formatCode)
	b = binary.LittleEndian.AppendUint16(b, channels)
	b = binary.LittleEndian.AppendUint32(b, 8000)
	b = binary.LittleEndian.AppendUint32(b, 8000*uint32(channels)*2)
	b = binary.LittleEndian.AppendUint16(b, channels*2)
	b = binary.LittleEndian.AppendUint16(b, bitDepth)
	if fmtSize == 18 {
		b = binary.LittleEndian.AppendUint16(b, uint16(len(extra)))
		b = append(b, extra...)
	}
	b = append(b, "data"...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(payload)))
	b = append(b, payload...)
	return append(b, meta...)
}

func TestMono_RoundTrip(t *testing.T) {
	testCases := []struct {
		name       string
		samples    []int16
		sampleRate int
		metadata   []byte
	}{
		{"empty", []int16{}, 44100, nil},
		{"single sample", []int16{-1}, 8000, nil},
		{"extremes", []int16{math.MinInt16, 0, math.MaxInt16}, 48000, nil},
		{"ramp", generateRamp(4410), 44100, nil},
		{"with metadata", generateRamp(100), 22050, []byte("LIST\x04\x00\x00\x00INFO")},
		{"odd metadata", []int16{1, 2, 3}, 16000, []byte{0xFF}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := &Mono{SampleRate: tc.sampleRate, Samples: tc.samples, Metadata: tc.metadata}
			data, err := in.Encode()
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			out, err := DecodeMono(data)
			if err != nil {
				t.Fatalf("DecodeMono() error = %v", err)
			}
			if out.SampleRate != tc.sampleRate {
				t.Errorf("SampleRate = %d, want %d", out.SampleRate, tc.sampleRate)
			}
			if !slices.Equal(out.Samples, tc.samples) {
				t.Errorf("Samples mismatch: got %d samples, want %d", len(out.Samples), len(tc.samples))
			}
			if !bytes.Equal(out.Metadata, tc.metadata) {
				t.Errorf("Metadata = %q, want %q", out.Metadata, tc.metadata)
			}
		})
	}
}

func TestMono_EncodeHeader(t *testing.T) {
	m := &Mono{SampleRate: 44100, Samples: []int16{1, -2, 3}}
	data, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	if len(data) != HeaderSize+6 {
		t.Fatalf("len = %d, want %d", len(data), HeaderSize+6)
	}

	checks := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"riff size", binary.LittleEndian.Uint32(data[4:8]), HeaderSize + 6 - 8},
		{"fmt size", binary.LittleEndian.Uint32(data[16:20]), 16},
		{"format code", uint32(binary.LittleEndian.Uint16(data[20:22])), 1},
		{"channels", uint32(binary.LittleEndian.Uint16(data[22:24])), 1},
		{"sample rate", binary.LittleEndian.Uint32(data[24:28]), 44100},
		{"byte rate", binary.LittleEndian.Uint32(data[28:32]), 88200},
		{"block align", uint32(binary.LittleEndian.Uint16(data[32:34])), 2},
		{"bit depth", uint32(binary.LittleEndian.Uint16(data[34:36])), 16},
		{"data size", binary.LittleEndian.Uint32(data[40:44]), 6},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Errorf("chunk ids wrong: %q", data[:44])
	}
	if got := int16(binary.LittleEndian.Uint16(data[46:48])); got != -2 {
		t.Errorf("second sample = %d, want -2", got)
	}
}

func TestEncode_Preconditions(t *testing.T) {
	testCases := []struct {
		name string
		enc  func() ([]byte, error)
	}{
		{"mono no rate", (&Mono{Samples: []int16{1}}).Encode},
		{"mono negative rate", (&Mono{SampleRate: -1, Samples: []int16{1}}).Encode},
		{"mono nil samples", (&Mono{SampleRate: 8000}).Encode},
		{"stereo no rate", (&Stereo{Left: []int16{1}, Right: []int16{1}}).Encode},
		{"stereo nil right", (&Stereo{SampleRate: 8000, Left: []int16{1}}).Encode},
		{"stereo length mismatch", (&Stereo{SampleRate: 8000, Left: []int16{1, 2}, Right: []int16{1}}).Encode},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.enc()
			if !errors.Is(err, ErrPrecondition) {
				t.Errorf("Encode() error = %v, want ErrPrecondition", err)
			}
		})
	}
}

func TestStereo_RoundTrip(t *testing.T) {
	in := &Stereo{
		SampleRate: 44100,
		Left:       []int16{1, 2, 3, math.MaxInt16},
		Right:      []int16{-1, -2, -3, math.MinInt16},
		Metadata:   []byte("tail"),
	}
	data, err := in.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	if ch := binary.LittleEndian.Uint16(data[22:24]); ch != 2 {
		t.Errorf("channels = %d, want 2", ch)
	}
	if br := binary.LittleEndian.Uint32(data[28:32]); br != 4*44100 {
		t.Errorf("byte rate = %d, want %d", br, 4*44100)
	}

	out, err := DecodeStereo(data)
	if err != nil {
		t.Fatalf("DecodeStereo() error = %v", err)
	}
	if !slices.Equal(out.Left, in.Left) {
		t.Errorf("Left = %v, want %v", out.Left, in.Left)
	}
	if !slices.Equal(out.Right, in.Right) {
		t.Errorf("Right = %v, want %v", out.Right, in.Right)
	}
	if string(out.Metadata) != "tail" {
		t.Errorf("Metadata = %q, want %q", out.Metadata, "tail")
	}
}

func TestDecode_ChannelModeMismatch(t *testing.T) {
	mono, _ := (&Mono{SampleRate: 8000, Samples: []int16{1, 2}}).Encode()
	stereo, _ := (&Stereo{SampleRate: 8000, Left: []int16{1}, Right: []int16{2}}).Encode()

	if _, err := DecodeStereo(mono); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("DecodeStereo(mono) error = %v, want ErrInvalidFormat", err)
	}
	if _, err := DecodeMono(stereo); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("DecodeMono(stereo) error = %v, want ErrInvalidFormat", err)
	}
}

func TestDecodeMono_ExtendedFmtChunk(t *testing.T) {
	payload := []byte{0x01, 0x00, 0xFF, 0xFF}
	data := buildWAV(18, 1, 1, 16, []byte{0xAA, 0xBB, 0xCC}, payload, []byte("meta"))

	m, err := DecodeMono(data)
	if err != nil {
		t.Fatalf("DecodeMono() error = %v", err)
	}
	if !slices.Equal(m.Samples, []int16{1, -1}) {
		t.Errorf("Samples = %v, want [1 -1]", m.Samples)
	}
	if m.SampleRate != 8000 {
		t.Errorf("SampleRate = %d, want 8000", m.SampleRate)
	}
	if string(m.Metadata) != "meta" {
		t.Errorf("Metadata = %q, want %q", m.Metadata, "meta")
	}
}

func TestDecodeMono_ExtendedFmtChunkEmptyExtension(t *testing.T) {
	data := buildWAV(18, 1, 1, 16, nil, []byte{0x02, 0x00}, nil)

	m, err := DecodeMono(data)
	if err != nil {
		t.Fatalf("DecodeMono() error = %v", err)
	}
	if !slices.Equal(m.Samples, []int16{2}) {
		t.Errorf("Samples = %v, want [2]", m.Samples)
	}
	if m.Metadata != nil {
		t.Errorf("Metadata = %v, want nil", m.Metadata)
	}
}

func TestDecodeMono_InvalidFormat(t *testing.T) {
	valid := buildWAV(16, 1, 1, 16, nil, []byte{1, 0, 2, 0}, nil)

	corrupt := func(off int, s string) []byte {
		b := slices.Clone(valid)
		copy(b[off:], s)
		return b
	}

	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", valid[:20]},
		{"bad riff magic", corrupt(0, "RIFX")},
		{"bad wave id", corrupt(8, "AVI ")},
		{"bad fmt id", corrupt(12, "fmtx")},
		{"bad fmt size", func() []byte {
			b := slices.Clone(valid)
			binary.LittleEndian.PutUint32(b[16:20], 40)
			return b
		}()},
		{"not pcm", buildWAV(16, 3, 1, 16, nil, []byte{1, 0}, nil)},
		{"8 bit", buildWAV(16, 1, 1, 8, nil, []byte{1, 0}, nil)},
		{"24 bit", buildWAV(16, 1, 1, 24, nil, []byte{1, 0, 0}, nil)},
		{"bad data id", corrupt(36, "LIST")},
		{"truncated data", valid[:len(valid)-1]},
		{"odd data size", buildWAV(16, 1, 1, 16, nil, []byte{1, 0, 2}, nil)},
		{"missing data chunk", valid[:38]},
		{"truncated extension", buildWAV(18, 1, 1, 16, nil, nil, nil)[:36]},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeMono(tc.data)
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("DecodeMono() error = %v, want ErrInvalidFormat", err)
			}
		})
	}
}

func TestDecodeStereo_OddFrameRejected(t *testing.T) {
	// 6 bytes is three 16-bit samples, which cannot split into two channels
	data := buildWAV(16, 1, 2, 16, nil, []byte{1, 0, 2, 0, 3, 0}, nil)
	if _, err := DecodeStereo(data); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("DecodeStereo() error = %v, want ErrInvalidFormat", err)
	}
}

func TestMonoFile_WriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clap.wav")
	in := &Mono{SampleRate: 44100, Samples: generateRamp(1000)}

	if err := WriteMonoFile(path, in); err != nil {
		t.Fatalf("WriteMonoFile() error = %v", err)
	}

	out, err := ReadMonoFile(path)
	if err != nil {
		t.Fatalf("ReadMonoFile() error = %v", err)
	}
	if !slices.Equal(out.Samples, in.Samples) {
		t.Error("samples differ after file round trip")
	}
}

func TestReadMonoFile_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := ReadMonoFile(filepath.Join(dir, "missing.wav")); err == nil {
		t.Error("ReadMonoFile(missing) error = nil")
	}

	bad := filepath.Join(dir, "bad.wav")
	if err := os.WriteFile(bad, []byte("not a wav file at all, just text padding"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadMonoFile(bad); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("ReadMonoFile(bad) error = %v, want ErrInvalidFormat", err)
	}
}
