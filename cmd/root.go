// cmd/root.go
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/clapdetector/internal/audio"
	"github.com/ColonelBlimp/clapdetector/internal/cache"
	"github.com/ColonelBlimp/clapdetector/internal/config"
	"github.com/ColonelBlimp/clapdetector/internal/dsp"
	"github.com/ColonelBlimp/clapdetector/internal/keyword"
	"github.com/ColonelBlimp/clapdetector/internal/meter"
)

// settings is loaded by PersistentPreRunE before any subcommand runs
var settings *config.Settings

var rootCmd = &cobra.Command{
	Use:   "clapdetector",
	Short: "Recognize claps and short sounds from audio input",
	Long: `Records short sounds (claps, snaps, spoken words) as keyword templates and
listens to the microphone for sounds that match one of them.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().IntP("device", "d", -1, "audio device index (-1 for default)")
	rootCmd.PersistentFlags().IntP("rate", "r", 44100, "capture sample rate in Hz")
	rootCmd.PersistentFlags().StringP("dir", "k", ".", "keyword template directory")
	rootCmd.PersistentFlags().Float64P("threshold", "t", keyword.DefaultThreshold, "minimum match similarity (0.0-1.0)")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")

	// Bind flags to viper
	viper.BindPFlag("device_index", rootCmd.PersistentFlags().Lookup("device"))
	viper.BindPFlag("sample_rate", rootCmd.PersistentFlags().Lookup("rate"))
	viper.BindPFlag("keywords_dir", rootCmd.PersistentFlags().Lookup("dir"))
	viper.BindPFlag("match_threshold", rootCmd.PersistentFlags().Lookup("threshold"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(recordCmd, listenCmd, keywordsCmd, devicesCmd)
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

func loadSettings(cmd *cobra.Command, _ []string) error {
	s, err := config.Get()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	settings = s
	slog.SetDefault(newLogger(cmd.ErrOrStderr(), s))
	return nil
}

func newLogger(w io.Writer, s *config.Settings) *slog.Logger {
	opts := &slog.HandlerOptions{Level: s.SlogLevel()}
	if s.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newCapture(s *config.Settings) *audio.Capture {
	return audio.New(audio.Config{
		DeviceIndex:    s.DeviceIndex,
		SampleRate:     uint32(s.SampleRate),
		BufferSize:     uint32(s.BufferSize),
		ChunkSize:      s.ChunkSize,
		QueueSize:      s.QueueSize,
		OpenRetries:    s.OpenRetries,
		OpenRetryDelay: s.OpenRetryDelay,
	}, slog.Default())
}

// openCache returns the persistent spectrum cache, or a memory cache when
// cache_dir is empty.
func openCache(s *config.Settings) (cache.Store, error) {
	if s.CacheDir == "" {
		return cache.NewMemory(), nil
	}
	store, err := cache.NewBadger(cache.BadgerOptions{Dir: s.CacheDir, Logger: slog.Default()})
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", s.CacheDir, err)
	}
	return store, nil
}

func libraryOptions(s *config.Settings, store cache.Store) keyword.BuildOptions {
	return keyword.BuildOptions{
		Dir:    s.KeywordsDir,
		Glob:   s.KeywordsGlob,
		Fold:   s.Fold(),
		Cache:  store,
		Logger: slog.Default(),
	}
}

func onsetConfig(s *config.Settings) dsp.OnsetConfig {
	return dsp.OnsetConfig{
		TriggerFactor: s.TriggerFactor,
		TargetSamples: s.TargetSamples(),
	}
}

// newMeter returns nil when the meter is disabled.
func newMeter(w io.Writer, s *config.Settings) *meter.Meter {
	if !s.Meter {
		return nil
	}
	return meter.New(w, s.MeterWidth)
}

func closeCache(store cache.Store) {
	if err := store.Close(); err != nil {
		slog.Warn("close cache", "err", err)
	}
}

func closeCapture(c *audio.Capture) {
	if err := c.Close(); err != nil {
		slog.Warn("close audio", "err", err)
	}
}
