// cmd/record.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/clapdetector/internal/session"
)

var recordCmd = &cobra.Command{
	Use:   "record [name...]",
	Short: "Record keyword templates from the microphone",
	Long: `Records one sound per keyword name and saves it as <name>.wav in the keyword
directory. Without arguments, names are read from standard input until an
empty line.`,
	RunE: runRecord,
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(settings.KeywordsDir, 0755); err != nil {
		return fmt.Errorf("create keyword dir: %w", err)
	}

	capture := newCapture(settings)
	if err := capture.Init(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	defer closeCapture(capture)

	out := cmd.OutOrStdout()
	rec, err := session.NewRecorder(capture, session.RecorderConfig{
		Dir:             settings.KeywordsDir,
		SampleRate:      settings.SampleRate,
		Onset:           onsetConfig(settings),
		Fold:            settings.Fold(),
		Spectrogram:     settings.Spectrogram,
		SpectrogramGain: settings.SpectrogramGain,
	}, out, slog.Default())
	if err != nil {
		return err
	}
	if m := newMeter(out, settings); m != nil {
		rec.SetObserver(m)
	}

	var recordings []session.Recording
	if len(args) > 0 {
		recordings, err = rec.RecordAll(ctx, args)
	} else {
		recordings, err = rec.Prompt(ctx, cmd.InOrStdin())
	}
	slog.Debug("record finished", "recorded", len(recordings))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
