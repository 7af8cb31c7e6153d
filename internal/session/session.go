// internal/session/session.go
// Package session wires the capture device, onset detector, analyzer and
// matcher into the record and listen pipelines.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ColonelBlimp/clapdetector/internal/audio"
	"github.com/ColonelBlimp/clapdetector/internal/dsp"
)

// Device is the capture collaborator a session drives.
// *audio.Capture satisfies it.
type Device interface {
	Start(ctx context.Context) error
	Stop() error
	dsp.ChunkReader
}

var _ Device = (*audio.Capture)(nil)

var (
	ErrDeviceRequired  = errors.New("capture device is required")
	ErrLibraryRequired = errors.New("keyword library is required")
	ErrMatcherRequired = errors.New("matcher is required")
)

// clearer is implemented by observers that draw on the terminal line
type clearer interface {
	Clear()
}

// base holds what recorder and listener share.
type base struct {
	dev      Device
	detector *dsp.OnsetDetector
	out      io.Writer
	logger   *slog.Logger
	observer dsp.IntensityObserver

	// outMu serializes observer redraws with lines written to out.
	outMu *sync.Mutex
}

// lockedObserver holds outMu while the wrapped observer draws.
type lockedObserver struct {
	mu *sync.Mutex
	o  dsp.IntensityObserver
}

func (l lockedObserver) ObserveIntensity(level float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.o.ObserveIntensity(level)
}

func newBase(dev Device, onset dsp.OnsetConfig, out io.Writer, logger *slog.Logger) (base, error) {
	if dev == nil {
		return base{}, ErrDeviceRequired
	}
	det, err := dsp.NewOnsetDetector(onset)
	if err != nil {
		return base{}, err
	}
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return base{dev: dev, detector: det, out: out, logger: logger, outMu: &sync.Mutex{}}, nil
}

// SetObserver receives the intensity of every chunk while capturing.
func (b *base) SetObserver(o dsp.IntensityObserver) {
	b.outMu.Lock()
	b.observer = o
	b.outMu.Unlock()
	if o == nil {
		b.detector.SetObserver(nil)
		return
	}
	b.detector.SetObserver(lockedObserver{mu: b.outMu, o: o})
}

// clearLine erases any meter line before regular output is written.
func (b *base) clearLine() {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	b.clearLocked()
}

func (b *base) clearLocked() {
	if c, ok := b.observer.(clearer); ok {
		c.Clear()
	}
}

// Printf clears the meter line and writes to out. No redraw can land
// between the two.
func (b *base) Printf(format string, args ...any) {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	b.clearLocked()
	_, _ = fmt.Fprintf(b.out, format, args...)
}

// withOutput runs fn with the meter line cleared and redraws held off.
func (b *base) withOutput(fn func()) {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	b.clearLocked()
	fn()
}

// stopDevice stops the device, ignoring the error when a context
// cancellation already stopped it.
func (b *base) stopDevice() {
	if err := b.dev.Stop(); err != nil && !errors.Is(err, audio.ErrNotRunning) {
		b.logger.Warn("stop device", "err", err)
	}
}
