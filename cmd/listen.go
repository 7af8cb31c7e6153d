// cmd/listen.go
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/clapdetector/internal/keyword"
	"github.com/ColonelBlimp/clapdetector/internal/session"
)

var (
	listenWatch bool
	listenOnce  bool
	listenJSON  bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Listen for recorded keywords",
	Long: `Builds the keyword library from the keyword directory and reports every
captured sound that matches one of the templates. Stops on Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().BoolVarP(&listenWatch, "watch", "w", false, "reload templates when the keyword directory changes")
	listenCmd.Flags().BoolVar(&listenOnce, "once", false, "stop after the first captured sound")
	listenCmd.Flags().BoolVar(&listenJSON, "json", false, "print detections as JSON lines")
}

func runListen(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openCache(settings)
	if err != nil {
		return err
	}
	defer closeCache(store)

	opts := libraryOptions(settings, store)
	opts.SampleRate = settings.SampleRate
	lib, err := keyword.Build(ctx, opts)
	if err != nil {
		return fmt.Errorf("build keyword library: %w", err)
	}
	if n, err := keyword.PruneCache(ctx, store); err != nil {
		slog.Warn("prune cache", "err", err)
	} else if n > 0 {
		slog.Debug("pruned stale cache entries", "count", n)
	}
	if lib.Len() == 0 {
		slog.Warn("no keyword templates found", "dir", opts.Dir, "glob", opts.Glob)
	}

	matcher, err := keyword.NewMatcher(settings.MatchBins, settings.MatchThreshold)
	if err != nil {
		return err
	}

	var source session.LibrarySource = session.StaticLibrary{Lib: lib}
	var watcher *keyword.Watcher
	if listenWatch {
		watcher = keyword.NewWatcher(lib, opts)
		source = watcher
	}

	capture := newCapture(settings)
	if err := capture.Init(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	defer closeCapture(capture)

	out := cmd.OutOrStdout()
	l, err := session.NewListener(capture, source, matcher, session.ListenerConfig{
		Onset: onsetConfig(settings),
		Fold:  settings.Fold(),
		Once:  listenOnce,
	}, out, slog.Default())
	if err != nil {
		return err
	}

	if m := newMeter(out, settings); m != nil {
		l.SetObserver(m)
	}
	if listenJSON {
		enc := json.NewEncoder(out)
		l.OnDetect(func(d session.Detection) {
			if err := enc.Encode(d); err != nil {
				slog.Warn("write detection", "err", err)
			}
		})
	}

	if watcher != nil {
		watcher.SetReloadFunc(func(lib *keyword.Library) {
			l.Printf("keywords reloaded (%d)\n", lib.Len())
		})
		watchCtx, cancelWatch := context.WithCancel(ctx)
		watchDone := make(chan struct{})
		go func() {
			defer close(watchDone)
			if err := watcher.Run(watchCtx); err != nil && watchCtx.Err() == nil {
				slog.Error("keyword watcher stopped", "err", err)
			}
		}()
		// The watcher rebuilds through store, so it must stop before the cache closes.
		defer func() {
			cancelWatch()
			<-watchDone
		}()
	}

	err = l.Run(ctx)
	captured, dropped := l.Stats()
	slog.Debug("listen finished", "captured", captured, "dropped", dropped)
	return err
}
