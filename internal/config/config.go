// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ColonelBlimp/clapdetector/internal/dsp"
)

const (
	AppName       = "clapdetector"
	ConfigType    = "yaml"
	DefaultConfig = `# Clap Detector Configuration

# Audio device settings
device_index: -1        # -1 for default device (see 'clapdetector devices')
sample_rate: 44100      # Capture sample rate in Hz
buffer_size: 512        # Device period in frames
chunk_size: 2048        # Samples per detector chunk (power of 2)
queue_size: 8           # Chunks buffered between device and detector before dropping
open_retries: 3         # Extra attempts when the device fails to open
open_retry_delay: 500ms # Wait between attempts (multiplied by attempt number)

# Onset detection
trigger_factor: 10      # Chunk RMS must exceed previous chunk RMS times this
keyword_duration: 1.0   # Seconds captured after the trigger

# Keyword library
keywords_dir: "."       # Directory holding <name>.wav templates
keywords_glob: "*.wav"  # Template file pattern
cache_dir: ""           # Persistent spectrum cache; empty keeps it in memory

# Matching
spectrum_fold: sum      # sum (|re+im|) or magnitude (sqrt(re^2+im^2))
match_bins: 64          # Histogram buckets compared by the matcher
match_threshold: 0.85   # Minimum similarity (0.0-1.0) to report a keyword

# Recording
spectrogram: true       # Write <name>.png next to each recording
spectrogram_gain: 10    # Pixel = clamp(value * gain, 0, 255)

# Console
meter: true             # Show the input level meter while capturing
meter_width: 60         # Meter width in cells

# Logging
log_level: info         # debug, info, warn, error
log_format: text        # text or json
debug: false            # Shortcut for log_level: debug
`
)

// Settings holds all application configuration
type Settings struct {
	// Audio device settings
	DeviceIndex    int           `mapstructure:"device_index"`
	SampleRate     int           `mapstructure:"sample_rate"`
	BufferSize     int           `mapstructure:"buffer_size"`
	ChunkSize      int           `mapstructure:"chunk_size"`
	QueueSize      int           `mapstructure:"queue_size"`
	OpenRetries    int           `mapstructure:"open_retries"`
	OpenRetryDelay time.Duration `mapstructure:"open_retry_delay"`

	// Onset detection
	TriggerFactor   float64 `mapstructure:"trigger_factor"`
	KeywordDuration float64 `mapstructure:"keyword_duration"`

	// Keyword library
	KeywordsDir  string `mapstructure:"keywords_dir"`
	KeywordsGlob string `mapstructure:"keywords_glob"`
	CacheDir     string `mapstructure:"cache_dir"`

	// Matching
	SpectrumFold   string  `mapstructure:"spectrum_fold"`
	MatchBins      int     `mapstructure:"match_bins"`
	MatchThreshold float64 `mapstructure:"match_threshold"`

	// Recording
	Spectrogram     bool    `mapstructure:"spectrogram"`
	SpectrogramGain float64 `mapstructure:"spectrogram_gain"`

	// Console
	Meter      bool `mapstructure:"meter"`
	MeterWidth int  `mapstructure:"meter_width"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	Debug     bool   `mapstructure:"debug"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/clapdetector/
func Init() error {
	// Set defaults
	viper.SetDefault("device_index", -1)
	viper.SetDefault("sample_rate", 44100)
	viper.SetDefault("buffer_size", 512)
	viper.SetDefault("chunk_size", 2048)
	viper.SetDefault("queue_size", 8)
	viper.SetDefault("open_retries", 3)
	viper.SetDefault("open_retry_delay", "500ms")
	viper.SetDefault("trigger_factor", dsp.DefaultTriggerFactor)
	viper.SetDefault("keyword_duration", 1.0)
	viper.SetDefault("keywords_dir", ".")
	viper.SetDefault("keywords_glob", "*.wav")
	viper.SetDefault("cache_dir", "")
	viper.SetDefault("spectrum_fold", string(dsp.FoldSum))
	viper.SetDefault("match_bins", 64)
	viper.SetDefault("match_threshold", 0.85)
	viper.SetDefault("spectrogram", true)
	viper.SetDefault("spectrogram_gain", 10.0)
	viper.SetDefault("meter", true)
	viper.SetDefault("meter_width", 60)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("debug", false)

	// Support both config.yaml and .config.yaml
	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	// Read config file - if not found, create default in XDG config dir
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("read config: %w", err)
		}
		if err = ensureConfigExists(filepath.Join(configDir, AppName)); err != nil {
			return err
		}
		if err = viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// TargetSamples is the onset segment length: sample_rate * keyword_duration, rounded.
func (s *Settings) TargetSamples() int {
	return int(math.Round(float64(s.SampleRate) * s.KeywordDuration))
}

// Fold returns the parsed spectrum fold mode. Validate has already checked it.
func (s *Settings) Fold() dsp.FoldMode {
	mode, err := dsp.ParseFoldMode(s.SpectrumFold)
	if err != nil {
		return dsp.FoldSum
	}
	return mode
}

// SlogLevel maps log_level to a slog level; debug forces LevelDebug.
func (s *Settings) SlogLevel() slog.Level {
	if s.Debug {
		return slog.LevelDebug
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Audio device settings
	if s.DeviceIndex < -1 {
		errs = append(errs, fmt.Errorf("device_index must be -1 (default) or a device index, got %d", s.DeviceIndex))
	}
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %d", s.SampleRate))
	}
	if s.BufferSize < 64 || s.BufferSize > 8192 {
		errs = append(errs, fmt.Errorf("buffer_size must be between 64 and 8192, got %d", s.BufferSize))
	}
	if !isPowerOfTwo(s.BufferSize) {
		errs = append(errs, fmt.Errorf("buffer_size should be a power of 2, got %d", s.BufferSize))
	}
	if s.ChunkSize < 256 || s.ChunkSize > 65536 {
		errs = append(errs, fmt.Errorf("chunk_size must be between 256 and 65536, got %d", s.ChunkSize))
	}
	if !isPowerOfTwo(s.ChunkSize) {
		errs = append(errs, fmt.Errorf("chunk_size should be a power of 2, got %d", s.ChunkSize))
	}
	if s.ChunkSize >= s.SampleRate {
		errs = append(errs, fmt.Errorf("chunk_size (%d) must be less than sample_rate (%d)", s.ChunkSize, s.SampleRate))
	}
	if s.QueueSize < 1 || s.QueueSize > 1024 {
		errs = append(errs, fmt.Errorf("queue_size must be between 1 and 1024, got %d", s.QueueSize))
	}
	if s.OpenRetries < 0 || s.OpenRetries > 20 {
		errs = append(errs, fmt.Errorf("open_retries must be between 0 and 20, got %d", s.OpenRetries))
	}
	if s.OpenRetryDelay < 0 {
		errs = append(errs, fmt.Errorf("open_retry_delay must not be negative, got %v", s.OpenRetryDelay))
	}

	// Onset detection
	if s.TriggerFactor <= 1 {
		errs = append(errs, fmt.Errorf("trigger_factor must be greater than 1, got %v", s.TriggerFactor))
	}
	if s.KeywordDuration <= 0 || s.KeywordDuration > 10 {
		errs = append(errs, fmt.Errorf("keyword_duration must be between 0 and 10 seconds, got %v", s.KeywordDuration))
	} else if s.TargetSamples() < 2 {
		errs = append(errs, fmt.Errorf("keyword_duration %v yields fewer than 2 samples", s.KeywordDuration))
	}

	// Keyword library
	if strings.TrimSpace(s.KeywordsDir) == "" {
		errs = append(errs, errors.New("keywords_dir must not be empty"))
	}
	if s.KeywordsGlob == "" {
		errs = append(errs, errors.New("keywords_glob must not be empty"))
	} else if _, err := filepath.Match(s.KeywordsGlob, ""); err != nil {
		errs = append(errs, fmt.Errorf("keywords_glob %q: %w", s.KeywordsGlob, err))
	}

	// Matching
	if _, err := dsp.ParseFoldMode(s.SpectrumFold); err != nil {
		errs = append(errs, fmt.Errorf("spectrum_fold must be sum or magnitude, got %q", s.SpectrumFold))
	}
	if s.MatchBins < 1 || s.MatchBins > 4096 {
		errs = append(errs, fmt.Errorf("match_bins must be between 1 and 4096, got %d", s.MatchBins))
	}
	if s.MatchThreshold < 0.0 || s.MatchThreshold > 1.0 {
		errs = append(errs, fmt.Errorf("match_threshold must be between 0.0 and 1.0, got %v", s.MatchThreshold))
	}

	// Recording
	if s.SpectrogramGain <= 0 {
		errs = append(errs, fmt.Errorf("spectrogram_gain must be positive, got %v", s.SpectrogramGain))
	}

	// Console
	if s.MeterWidth < 10 || s.MeterWidth > 400 {
		errs = append(errs, fmt.Errorf("meter_width must be between 10 and 400, got %d", s.MeterWidth))
	}

	// Logging
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", s.LogLevel))
	}
	switch s.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", s.LogFormat))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
