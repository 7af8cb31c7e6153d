// internal/dsp/detector.go
package dsp

import (
	"context"
	"errors"
	"sync/atomic"
)

// DefaultTriggerFactor is the energy jump between consecutive chunks that marks an onset
const DefaultTriggerFactor = 10.0

var (
	// ErrInvalidTriggerFactor indicates the trigger factor must be greater than 1
	ErrInvalidTriggerFactor = errors.New("trigger factor must be greater than 1")
	// ErrInvalidTargetLength indicates the target segment length must be positive
	ErrInvalidTargetLength = errors.New("target sample count must be positive")
	// ErrSourceRequired indicates Capture was called without a chunk source
	ErrSourceRequired = errors.New("chunk source is required")
)

// ChunkReader delivers consecutive PCM chunks from a capture device.
// ReadChunk blocks until a chunk is available or ctx is done.
type ChunkReader interface {
	ReadChunk(ctx context.Context) ([]int16, error)
}

// IntensityObserver receives the level (RMS / MaxInt16) of every processed chunk.
// It is called from the capture loop and must be fast and non-blocking.
type IntensityObserver interface {
	ObserveIntensity(level float64)
}

// IntensityFunc adapts a function to IntensityObserver
type IntensityFunc func(level float64)

// ObserveIntensity calls f(level)
func (f IntensityFunc) ObserveIntensity(level float64) { f(level) }

// OnsetState is the detector's position in a capture session
type OnsetState int

const (
	// StateIdle waits for an energy jump
	StateIdle OnsetState = iota
	// StateCapturing accumulates samples toward the target length
	StateCapturing
	// StateDone holds a complete segment
	StateDone
)

func (s OnsetState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// OnsetConfig holds configuration for the onset detector.
type OnsetConfig struct {
	// TriggerFactor is the required ratio of current to previous chunk RMS (from config: trigger_factor)
	TriggerFactor float64
	// TargetSamples is the segment length returned once triggered (sample_rate * keyword_duration)
	TargetSamples int
}

// OnsetDetector finds the start of a sharp sound in a stream of chunks and
// collects a fixed-length segment beginning with the triggering chunk.
type OnsetDetector struct {
	config OnsetConfig

	prevRMS float64
	hasPrev bool // no trigger is possible before the first chunk has been measured
	state   OnsetState
	segment []int16

	observerPtr atomic.Pointer[IntensityObserver]
}

// NewOnsetDetector creates a detector in the idle state.
func NewOnsetDetector(cfg OnsetConfig) (*OnsetDetector, error) {
	if cfg.TriggerFactor <= 1 {
		return nil, ErrInvalidTriggerFactor
	}
	if cfg.TargetSamples <= 0 {
		return nil, ErrInvalidTargetLength
	}
	return &OnsetDetector{
		config:  cfg,
		segment: make([]int16, 0, cfg.TargetSamples),
	}, nil
}

// SetObserver sets the intensity observer. Pass nil to remove it.
func (d *OnsetDetector) SetObserver(o IntensityObserver) {
	if o == nil {
		d.observerPtr.Store(nil)
	} else {
		d.observerPtr.Store(&o)
	}
}

// Process feeds one chunk through the state machine and reports whether the
// segment is complete. Chunks arriving after completion are ignored.
func (d *OnsetDetector) Process(chunk []int16) (bool, error) {
	if d.state == StateDone {
		return true, nil
	}

	rms, err := RMS(chunk, len(chunk))
	if err != nil {
		return false, err
	}

	if obs := d.observerPtr.Load(); obs != nil {
		(*obs).ObserveIntensity(Intensity(rms))
	}

	if d.state == StateIdle && d.hasPrev && rms > d.prevRMS*d.config.TriggerFactor {
		d.state = StateCapturing
	}

	if d.state == StateCapturing {
		need := d.config.TargetSamples - len(d.segment)
		if len(chunk) > need {
			chunk = chunk[:need]
		}
		d.segment = append(d.segment, chunk...)
		if len(d.segment) == d.config.TargetSamples {
			d.state = StateDone
		}
	}

	d.prevRMS = rms
	d.hasPrev = true
	return d.state == StateDone, nil
}

// Segment returns a copy of the captured segment once the detector is done, nil before.
func (d *OnsetDetector) Segment() []int16 {
	if d.state != StateDone {
		return nil
	}
	out := make([]int16, len(d.segment))
	copy(out, d.segment)
	return out
}

// Capture resets the detector and reads chunks from src until a segment is
// complete. Cancellation is checked between chunks.
func (d *OnsetDetector) Capture(ctx context.Context, src ChunkReader) ([]int16, error) {
	if src == nil {
		return nil, ErrSourceRequired
	}
	d.Reset()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk, err := src.ReadChunk(ctx)
		if err != nil {
			return nil, err
		}
		done, err := d.Process(chunk)
		if err != nil {
			return nil, err
		}
		if done {
			return d.Segment(), nil
		}
	}
}

// State returns the current state
func (d *OnsetDetector) State() OnsetState {
	return d.state
}

// Reset discards the session state
func (d *OnsetDetector) Reset() {
	d.prevRMS = 0
	d.hasPrev = false
	d.state = StateIdle
	d.segment = d.segment[:0]
}

// Config returns the current configuration
func (d *OnsetDetector) Config() OnsetConfig {
	return d.config
}
