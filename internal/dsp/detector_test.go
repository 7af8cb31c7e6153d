package dsp

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"
	"time"
)

// Test configuration constants matching config file defaults
const (
	onsetTestSampleRate = 44100
	onsetTestChunkSize  = 2048
	onsetTestFactor     = DefaultTriggerFactor
)

// constantChunk returns a chunk whose RMS equals |level|
func constantChunk(n int, level int16) []int16 {
	chunk := make([]int16, n)
	for i := range chunk {
		chunk[i] = level
	}
	return chunk
}

// sliceSource replays prepared chunks and then blocks until ctx is done
type sliceSource struct {
	chunks [][]int16
	reads  int
}

func (s *sliceSource) ReadChunk(ctx context.Context) ([]int16, error) {
	if s.reads < len(s.chunks) {
		c := s.chunks[s.reads]
		s.reads++
		return c, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

// errSource fails on the first read
type errSource struct{ err error }

func (s errSource) ReadChunk(context.Context) ([]int16, error) { return nil, s.err }

func createTestOnsetDetector(t *testing.T, target int) *OnsetDetector {
	t.Helper()
	d, err := NewOnsetDetector(OnsetConfig{TriggerFactor: onsetTestFactor, TargetSamples: target})
	if err != nil {
		t.Fatalf("NewOnsetDetector failed: %v", err)
	}
	return d
}

func TestNewOnsetDetector_InvalidConfig(t *testing.T) {
	testCases := []struct {
		name string
		cfg  OnsetConfig
		want error
	}{
		{"zero factor", OnsetConfig{TriggerFactor: 0, TargetSamples: 10}, ErrInvalidTriggerFactor},
		{"factor of one", OnsetConfig{TriggerFactor: 1, TargetSamples: 10}, ErrInvalidTriggerFactor},
		{"zero target", OnsetConfig{TriggerFactor: 10, TargetSamples: 0}, ErrInvalidTargetLength},
		{"negative target", OnsetConfig{TriggerFactor: 10, TargetSamples: -5}, ErrInvalidTargetLength},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewOnsetDetector(tc.cfg)
			if err != tc.want {
				t.Errorf("NewOnsetDetector() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestOnsetDetector_TriggersOnEnergyJump(t *testing.T) {
	d := createTestOnsetDetector(t, onsetTestSampleRate)

	// RMS 100 then RMS 2000: factor 20 exceeds 10
	done, err := d.Process(constantChunk(onsetTestChunkSize, 100))
	if err != nil || done {
		t.Fatalf("Process(chunk1) = %v, %v", done, err)
	}
	if d.State() != StateIdle {
		t.Fatalf("State after chunk 1 = %v, want idle", d.State())
	}

	if _, err := d.Process(constantChunk(onsetTestChunkSize, 2000)); err != nil {
		t.Fatalf("Process(chunk2) error = %v", err)
	}
	if d.State() != StateCapturing {
		t.Fatalf("State after chunk 2 = %v, want capturing", d.State())
	}

	for !done {
		done, err = d.Process(constantChunk(onsetTestChunkSize, 2000))
		if err != nil {
			t.Fatalf("Process error = %v", err)
		}
	}

	seg := d.Segment()
	if slices.Contains(seg, 100) {
		t.Error("segment contains samples from the chunk before the trigger")
	}
	if seg[0] != 2000 {
		t.Errorf("segment[0] = %d, want 2000 (first sample of triggering chunk)", seg[0])
	}
}

func TestOnsetDetector_NoTriggerOnFirstChunk(t *testing.T) {
	d := createTestOnsetDetector(t, 100)

	if _, err := d.Process(constantChunk(64, math.MaxInt16)); err != nil {
		t.Fatalf("Process error = %v", err)
	}
	if d.State() != StateIdle {
		t.Errorf("State = %v after a loud first chunk, want idle", d.State())
	}
}

func TestOnsetDetector_BelowFactorDoesNotTrigger(t *testing.T) {
	d := createTestOnsetDetector(t, 100)

	levels := []int16{100, 900, 5000, 30000}
	for _, level := range levels {
		if _, err := d.Process(constantChunk(64, level)); err != nil {
			t.Fatalf("Process error = %v", err)
		}
	}
	if d.State() != StateIdle {
		t.Errorf("State = %v for gradual increase, want idle", d.State())
	}
}

func TestOnsetDetector_ExactlyFactorDoesNotTrigger(t *testing.T) {
	d := createTestOnsetDetector(t, 100)

	_, _ = d.Process(constantChunk(64, 100))
	_, _ = d.Process(constantChunk(64, 1000))
	if d.State() != StateIdle {
		t.Errorf("State = %v when ratio equals factor, want idle", d.State())
	}
}

func TestOnsetDetector_TriggerFromSilence(t *testing.T) {
	d := createTestOnsetDetector(t, 100)

	_, _ = d.Process(constantChunk(64, 0))
	_, _ = d.Process(constantChunk(64, 1))
	if d.State() != StateCapturing {
		t.Errorf("State = %v after silence then sound, want capturing", d.State())
	}
}

func TestOnsetDetector_ExactTargetLength(t *testing.T) {
	const target = 44100
	d := createTestOnsetDetector(t, target)

	_, _ = d.Process(constantChunk(onsetTestChunkSize, 100))

	chunks := 0
	for {
		done, err := d.Process(constantChunk(onsetTestChunkSize, 2000))
		if err != nil {
			t.Fatalf("Process error = %v", err)
		}
		chunks++
		if done {
			break
		}
		if chunks > 100 {
			t.Fatal("detector never completed")
		}
	}

	// 44100 / 2048 = 21.5, so the 22nd chunk is truncated
	if chunks != 22 {
		t.Errorf("completed after %d chunks, want 22", chunks)
	}
	if got := len(d.Segment()); got != target {
		t.Errorf("len(Segment()) = %d, want %d", got, target)
	}
	if d.State() != StateDone {
		t.Errorf("State = %v, want done", d.State())
	}
}

func TestOnsetDetector_IgnoresChunksAfterDone(t *testing.T) {
	d := createTestOnsetDetector(t, 10)

	_, _ = d.Process(constantChunk(16, 1))
	done, _ := d.Process(constantChunk(16, 500))
	if !done {
		t.Fatal("expected completion on triggering chunk longer than target")
	}

	done, err := d.Process(constantChunk(16, 7))
	if err != nil || !done {
		t.Errorf("Process after done = %v, %v; want true, nil", done, err)
	}
	if seg := d.Segment(); len(seg) != 10 || seg[9] != 500 {
		t.Errorf("segment changed after done: %v", seg)
	}
}

func TestOnsetDetector_SegmentIsSnapshot(t *testing.T) {
	d := createTestOnsetDetector(t, 4)

	_, _ = d.Process(constantChunk(4, 1))
	_, _ = d.Process(constantChunk(4, 100))

	seg := d.Segment()
	seg[0] = -1
	if d.Segment()[0] != 100 {
		t.Error("modifying returned segment changed detector state")
	}
}

func TestOnsetDetector_SegmentBeforeDone(t *testing.T) {
	d := createTestOnsetDetector(t, 100)
	if d.Segment() != nil {
		t.Error("Segment() before completion should be nil")
	}
}

func TestOnsetDetector_EmptyChunk(t *testing.T) {
	d := createTestOnsetDetector(t, 100)
	if _, err := d.Process(nil); err != ErrInvalidCount {
		t.Errorf("Process(nil) error = %v, want ErrInvalidCount", err)
	}
}

func TestOnsetDetector_ObserverReceivesIntensity(t *testing.T) {
	d := createTestOnsetDetector(t, 100)

	var levels []float64
	d.SetObserver(IntensityFunc(func(level float64) {
		levels = append(levels, level)
	}))

	_, _ = d.Process(constantChunk(32, 0))
	_, _ = d.Process(constantChunk(32, math.MaxInt16))

	if len(levels) != 2 {
		t.Fatalf("observer called %d times, want 2", len(levels))
	}
	if levels[0] != 0 {
		t.Errorf("levels[0] = %v, want 0", levels[0])
	}
	if math.Abs(levels[1]-1.0) > 1e-12 {
		t.Errorf("levels[1] = %v, want 1.0", levels[1])
	}
}

func TestOnsetDetector_ObserverDoesNotAffectDetection(t *testing.T) {
	run := func(withObserver bool) []int16 {
		d := createTestOnsetDetector(t, 50)
		if withObserver {
			d.SetObserver(IntensityFunc(func(float64) {}))
		}
		_, _ = d.Process(constantChunk(32, 10))
		_, _ = d.Process(constantChunk(32, 1000))
		_, _ = d.Process(constantChunk(32, 1200))
		return d.Segment()
	}

	if !slices.Equal(run(false), run(true)) {
		t.Error("segment differs with observer attached")
	}
}

func TestOnsetDetector_SetObserverNil(t *testing.T) {
	d := createTestOnsetDetector(t, 100)
	d.SetObserver(IntensityFunc(func(float64) {}))
	d.SetObserver(nil)

	if d.observerPtr.Load() != nil {
		t.Error("SetObserver(nil) should clear observer")
	}
}

func TestOnsetDetector_Capture(t *testing.T) {
	d := createTestOnsetDetector(t, 100)
	src := &sliceSource{chunks: [][]int16{
		constantChunk(64, 5),
		constantChunk(64, 5),
		constantChunk(64, 300),
		constantChunk(64, 400),
		constantChunk(64, 999),
	}}

	seg, err := d.Capture(context.Background(), src)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if len(seg) != 100 {
		t.Fatalf("len(seg) = %d, want 100", len(seg))
	}
	if seg[0] != 300 || seg[64] != 400 || seg[99] != 400 {
		t.Errorf("unexpected segment content: %d %d %d", seg[0], seg[64], seg[99])
	}
	if src.reads != 4 {
		t.Errorf("source reads = %d, want 4", src.reads)
	}
}

func TestOnsetDetector_CaptureResetsBetweenSessions(t *testing.T) {
	d := createTestOnsetDetector(t, 10)
	first := &sliceSource{chunks: [][]int16{constantChunk(10, 1), constantChunk(10, 100)}}
	if _, err := d.Capture(context.Background(), first); err != nil {
		t.Fatalf("first Capture() error = %v", err)
	}

	// The first chunk of a new session must not trigger against the old session's energy
	second := &sliceSource{chunks: [][]int16{constantChunk(10, 30000), constantChunk(10, 30000)}}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := d.Capture(ctx, second)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second Capture() error = %v, want deadline exceeded", err)
	}
}

func TestOnsetDetector_CaptureCancelled(t *testing.T) {
	d := createTestOnsetDetector(t, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Capture(ctx, &sliceSource{chunks: [][]int16{constantChunk(8, 1)}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Capture() error = %v, want context.Canceled", err)
	}
}

func TestOnsetDetector_CaptureErrors(t *testing.T) {
	d := createTestOnsetDetector(t, 100)

	if _, err := d.Capture(context.Background(), nil); err != ErrSourceRequired {
		t.Errorf("Capture(nil) error = %v, want ErrSourceRequired", err)
	}

	boom := errors.New("device unplugged")
	if _, err := d.Capture(context.Background(), errSource{boom}); !errors.Is(err, boom) {
		t.Errorf("Capture() error = %v, want %v", err, boom)
	}
}

func TestOnsetState_String(t *testing.T) {
	tests := map[OnsetState]string{
		StateIdle:      "idle",
		StateCapturing: "capturing",
		StateDone:      "done",
		OnsetState(42): "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("OnsetState(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
