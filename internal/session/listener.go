// internal/session/listener.go
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ColonelBlimp/clapdetector/internal/dsp"
	"github.com/ColonelBlimp/clapdetector/internal/keyword"
	"github.com/ColonelBlimp/clapdetector/internal/recovery"
)

// DefaultSegmentQueue is the number of captured segments waiting for analysis
const DefaultSegmentQueue = 2

// Detection reports a recognized keyword
type Detection struct {
	Session string    `json:"session" yaml:"session"`
	Keyword string    `json:"keyword" yaml:"keyword"`
	Score   float64   `json:"score" yaml:"score"`
	At      time.Time `json:"at" yaml:"at"`
}

// DetectFunc is called from the analysis goroutine for each detection.
// It runs with the meter line cleared and redraws held off, so it may write
// to the terminal but must not call Printf.
type DetectFunc func(d Detection)

// LibrarySource provides the current keyword library. *keyword.Watcher
// satisfies it; StaticLibrary wraps a fixed library.
type LibrarySource interface {
	Library() *keyword.Library
}

// StaticLibrary is a LibrarySource that never changes
type StaticLibrary struct {
	Lib *keyword.Library
}

func (s StaticLibrary) Library() *keyword.Library { return s.Lib }

// ListenerConfig configures listening.
type ListenerConfig struct {
	Onset        dsp.OnsetConfig
	Fold         dsp.FoldMode
	Once         bool // stop after the first captured segment
	SegmentQueue int  // 0 uses DefaultSegmentQueue
}

// Listener captures segments continuously and matches each one against the
// keyword library. Capture and analysis run in separate goroutines so a slow
// match never stalls the device.
type Listener struct {
	base
	cfg      ListenerConfig
	library  LibrarySource
	matcher  *keyword.Matcher
	onDetect atomic.Pointer[DetectFunc]

	segments atomic.Uint64
	dropped  atomic.Uint64
}

// NewListener creates a listener.
func NewListener(dev Device, lib LibrarySource, matcher *keyword.Matcher, cfg ListenerConfig, out io.Writer, logger *slog.Logger) (*Listener, error) {
	if lib == nil {
		return nil, ErrLibraryRequired
	}
	if matcher == nil {
		return nil, ErrMatcherRequired
	}
	b, err := newBase(dev, cfg.Onset, out, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Fold == "" {
		cfg.Fold = dsp.FoldSum
	}
	if cfg.SegmentQueue <= 0 {
		cfg.SegmentQueue = DefaultSegmentQueue
	}
	return &Listener{base: b, cfg: cfg, library: lib, matcher: matcher}, nil
}

// OnDetect sets the detection callback. Pass nil to clear.
func (l *Listener) OnDetect(fn DetectFunc) {
	if fn == nil {
		l.onDetect.Store(nil)
		return
	}
	l.onDetect.Store(&fn)
}

// Stats returns the number of captured and dropped segments
func (l *Listener) Stats() (captured, dropped uint64) {
	return l.segments.Load(), l.dropped.Load()
}

// Run listens until ctx is cancelled, or after one segment when Once is set.
// Cancellation is a normal shutdown and returns nil.
func (l *Listener) Run(ctx context.Context) error {
	id := uuid.NewString()
	logger := l.logger.With("session", id)

	if err := l.dev.Start(ctx); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	defer l.stopDevice()

	_, _ = fmt.Fprintln(l.out, "listening for keyword...")
	logger.Info("listening", "keywords", l.library.Library().Len(), "threshold", l.matcher.Threshold())

	segments := make(chan []int16, l.cfg.SegmentQueue)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer recovery.HandlePanicFunc(l.stopDevice)
		defer close(segments)
		return l.captureLoop(gctx, segments, logger)
	})

	g.Go(func() error {
		defer recovery.HandlePanicFunc(l.stopDevice)
		for seg := range segments {
			l.analyze(id, seg, logger)
		}
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (l *Listener) captureLoop(ctx context.Context, segments chan<- []int16, logger *slog.Logger) error {
	for {
		seg, err := l.detector.Capture(ctx, l.dev)
		if err != nil {
			// The device closes its stream on cancellation, so ErrStopped
			// shows up here as well as ctx.Err().
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("capture segment: %w", err)
		}
		l.segments.Add(1)

		select {
		case segments <- seg:
		default:
			l.dropped.Add(1)
			logger.Warn("analysis busy, segment dropped")
		}

		if l.cfg.Once {
			return nil
		}
	}
}

func (l *Listener) analyze(session string, seg []int16, logger *slog.Logger) {
	spectrum, err := dsp.AnalyzeFold(seg, l.cfg.Fold)
	if err != nil {
		logger.Warn("analyze segment", "err", err)
		return
	}

	lib := l.library.Library()
	match, err := l.matcher.Match(spectrum, lib.Spectra())
	if errors.Is(err, keyword.ErrNoMatch) {
		logger.Debug("no match", "keywords", lib.Len())
		return
	}
	if err != nil {
		logger.Warn("match segment", "err", err)
		return
	}

	d := Detection{Session: session, Keyword: match.Keyword, Score: match.Score, At: time.Now()}
	logger.Info("keyword detected", "keyword", d.Keyword, "score", d.Score)

	if fn := l.onDetect.Load(); fn != nil {
		l.withOutput(func() { (*fn)(d) })
		return
	}
	l.Printf("detected '%s' (score %.3f)\n", d.Keyword, d.Score)
}
