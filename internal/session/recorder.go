package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ColonelBlimp/clapdetector/internal/dsp"
	"github.com/ColonelBlimp/clapdetector/internal/keyword"
	"github.com/ColonelBlimp/clapdetector/internal/wav"
)

// RecorderConfig configures keyword recording.
type RecorderConfig struct {
	Dir             string // keywords_dir
	SampleRate      int
	Onset           dsp.OnsetConfig
	Fold            dsp.FoldMode
	Spectrogram     bool    // also write <name>.png
	SpectrogramGain float64 // pixel = clamp(value * gain)
}

// Recording describes the files written for one keyword.
type Recording struct {
	Name      string
	WavPath   string
	ImagePath string
	Samples   int
}

// Recorder captures one onset segment per keyword and saves it as a template.
type Recorder struct {
	base
	cfg RecorderConfig
}

// NewRecorder creates a recorder. out receives the progress lines.
func NewRecorder(dev Device, cfg RecorderConfig, out io.Writer, logger *slog.Logger) (*Recorder, error) {
	b, err := newBase(dev, cfg.Onset, out, logger)
	if err != nil {
		return nil, err
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", wav.ErrPrecondition, cfg.SampleRate)
	}
	if cfg.Fold == "" {
		cfg.Fold = dsp.FoldSum
	}
	return &Recorder{base: b, cfg: cfg}, nil
}

// Record starts the device, captures one segment, stops the device and
// writes <dir>/<name>.wav and, when enabled, <dir>/<name>.png.
func (r *Recorder) Record(ctx context.Context, name string) (Recording, error) {
	wavPath, err := keyword.TemplatePath(r.cfg.Dir, name)
	if err != nil {
		return Recording{}, err
	}

	if err := r.dev.Start(ctx); err != nil {
		return Recording{}, fmt.Errorf("start capture: %w", err)
	}
	_, _ = fmt.Fprintln(r.out, "recording keyword...")

	segment, err := r.detector.Capture(ctx, r.dev)
	r.stopDevice()
	r.clearLine()
	if err != nil {
		return Recording{}, err
	}

	rec := Recording{Name: name, WavPath: wavPath, Samples: len(segment)}
	m := &wav.Mono{SampleRate: r.cfg.SampleRate, Samples: segment}
	if err := wav.WriteMonoFile(wavPath, m); err != nil {
		return Recording{}, err
	}
	_, _ = fmt.Fprintf(r.out, "'%s' was saved.\n", wavPath)
	r.logger.Info("keyword recorded", "keyword", name, "file", wavPath, "samples", len(segment))

	if r.cfg.Spectrogram {
		imgPath := strings.TrimSuffix(wavPath, filepath.Ext(wavPath)) + ".png"
		if err := r.writeSpectrogram(imgPath, segment); err != nil {
			return rec, err
		}
		rec.ImagePath = imgPath
		_, _ = fmt.Fprintf(r.out, "'%s' was saved.\n", imgPath)
	}

	return rec, nil
}

func (r *Recorder) writeSpectrogram(path string, segment []int16) error {
	columns, err := dsp.Spectrogram(segment, r.cfg.Fold)
	if err != nil {
		return fmt.Errorf("spectrogram: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, dsp.SpectrogramImage(columns, r.cfg.SpectrogramGain)); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// RecordAll records each name in turn.
func (r *Recorder) RecordAll(ctx context.Context, names []string) ([]Recording, error) {
	out := make([]Recording, 0, len(names))
	for _, name := range names {
		rec, err := r.Record(ctx, name)
		if err != nil {
			return out, fmt.Errorf("record %q: %w", name, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Prompt asks for keyword names on in and records each one until an empty
// line, end of input or ctx is done. Cancellation is noticed while waiting
// for input; the blocked read itself is abandoned, not interrupted.
func (r *Recorder) Prompt(ctx context.Context, in io.Reader) ([]Recording, error) {
	lines, scanErr, done := readLines(ctx, in)
	defer close(done)

	var out []Recording
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		_, _ = fmt.Fprint(r.out, "Enter keyword name: ")
		var line string
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(r.out)
			return out, ctx.Err()
		case l, ok := <-lines:
			if !ok {
				_, _ = fmt.Fprintln(r.out)
				if err := ctx.Err(); err != nil {
					return out, err
				}
				return out, <-scanErr
			}
			line = l
		}
		// A line and a cancellation can arrive together.
		if err := ctx.Err(); err != nil {
			_, _ = fmt.Fprintln(r.out)
			return out, err
		}

		name := strings.TrimSpace(line)
		if name == "" {
			return out, nil
		}

		rec, err := r.Record(ctx, name)
		if errors.Is(err, keyword.ErrInvalidName) {
			_, _ = fmt.Fprintln(r.out, err)
			continue
		}
		if err != nil {
			return out, fmt.Errorf("record %q: %w", name, err)
		}
		out = append(out, rec)
	}
}

// readLines scans in on its own goroutine so a blocked read never holds up
// cancellation. lines is closed at end of input, after the scanner error has
// been sent on scanErr. Closing done releases the goroutine between lines.
func readLines(ctx context.Context, in io.Reader) (lines <-chan string, scanErr <-chan error, done chan struct{}) {
	ch := make(chan string)
	errCh := make(chan error, 1)
	done = make(chan struct{})

	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case <-done:
				errCh <- nil
				return
			}
		}
		errCh <- scanner.Err()
	}()
	return ch, errCh, done
}
