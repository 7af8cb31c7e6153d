// internal/audio/capture.go
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

var (
	ErrNotInitialized = errors.New("audio capture not initialized")
	ErrAlreadyRunning = errors.New("audio capture already running")
	ErrNotRunning     = errors.New("audio capture not running")
)

// Config holds audio capture configuration
type Config struct {
	DeviceIndex int    // -1 for default device
	SampleRate  uint32 // e.g., 44100
	BufferSize  uint32 // frames per device callback
	ChunkSize   int    // samples per chunk handed to the detector
	QueueSize   int    // undelivered chunks held before dropping

	OpenRetries    int           // extra attempts when the device fails to open
	OpenRetryDelay time.Duration // wait between attempts, multiplied by attempt number
}

// DefaultConfig returns defaults for 16-bit mono keyword capture
func DefaultConfig() Config {
	return Config{
		DeviceIndex:    -1,
		SampleRate:     44100,
		BufferSize:     512,
		ChunkSize:      2048,
		QueueSize:      8,
		OpenRetries:    3,
		OpenRetryDelay: 500 * time.Millisecond,
	}
}

// DeviceInfo describes a capture device
type DeviceInfo struct {
	Index     int    `json:"index" yaml:"index"`
	Name      string `json:"name" yaml:"name"`
	IsDefault bool   `json:"default" yaml:"default"`
}

// Capture records 16-bit mono PCM from an input device and delivers it as
// fixed-size chunks through ReadChunk.
type Capture struct {
	config  Config
	logger  *slog.Logger
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	chunker *Chunker
	running bool
	mu      sync.RWMutex
}

// New creates a new audio capture instance
func New(cfg Config, logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capture{
		config: cfg,
		logger: logger.With("component", "audio"),
	}
}

// Config returns the capture configuration
func (c *Capture) Config() Config {
	return c.config
}

// Init initializes the audio backend
func (c *Capture) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx != nil {
		return nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		c.logger.Debug("malgo", "msg", msg)
	})
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	c.ctx = ctx

	return nil
}

// ListDevices returns available capture devices
func (c *Capture) ListDevices() ([]DeviceInfo, error) {
	infos, err := c.devices()
	if err != nil {
		return nil, err
	}

	out := make([]DeviceInfo, len(infos))
	for i := range infos {
		out[i] = DeviceInfo{
			Index:     i,
			Name:      infos[i].Name(),
			IsDefault: infos[i].IsDefault != 0,
		}
	}
	return out, nil
}

func (c *Capture) devices() ([]malgo.DeviceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.ctx == nil {
		return nil, ErrNotInitialized
	}

	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	return infos, nil
}

// Start opens the device and begins delivering chunks. Opening is retried
// OpenRetries times. The device is stopped when ctx is cancelled.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.RLock()
	running, initialized := c.running, c.ctx != nil
	c.mu.RUnlock()
	if running {
		return ErrAlreadyRunning
	}
	if !initialized {
		return ErrNotInitialized
	}

	chunker, err := NewChunker(c.config.ChunkSize, c.config.QueueSize)
	if err != nil {
		return err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.SampleRate = c.config.SampleRate
	deviceConfig.PeriodSizeInFrames = c.config.BufferSize
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1

	// Select specific device if requested
	if c.config.DeviceIndex >= 0 {
		devices, err := c.devices()
		if err != nil {
			return err
		}
		if c.config.DeviceIndex >= len(devices) {
			return fmt.Errorf("device index %d out of range (have %d devices)",
				c.config.DeviceIndex, len(devices))
		}
		deviceConfig.Capture.DeviceID = devices[c.config.DeviceIndex].ID.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			if len(input) == 0 {
				return
			}
			chunker.Write(bytesToInt16(input))
		},
	}

	var device *malgo.Device
	err = retry(ctx, c.config.OpenRetries, c.config.OpenRetryDelay, func() error {
		d, err := malgo.InitDevice(c.ctx.Context, deviceConfig, callbacks)
		if err != nil {
			c.logger.Warn("init device failed", "err", err)
			return fmt.Errorf("init device: %w", err)
		}
		if err := d.Start(); err != nil {
			d.Uninit()
			c.logger.Warn("start device failed", "err", err)
			return fmt.Errorf("start device: %w", err)
		}
		device = d
		return nil
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.device = device
	c.chunker = chunker
	c.running = true
	c.mu.Unlock()

	c.logger.Debug("capture started",
		"rate", c.config.SampleRate, "device", c.config.DeviceIndex, "chunk", c.config.ChunkSize)

	// Stop this session on cancellation unless it was already stopped
	go func() {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			if c.running && c.chunker == chunker {
				c.stopLocked()
			}
			c.mu.Unlock()
		case <-chunker.done:
		}
	}()

	return nil
}

// ReadChunk returns the next fixed-size chunk from the running device.
func (c *Capture) ReadChunk(ctx context.Context) ([]int16, error) {
	c.mu.RLock()
	chunker := c.chunker
	c.mu.RUnlock()

	if chunker == nil {
		return nil, ErrNotRunning
	}
	return chunker.ReadChunk(ctx)
}

// Stop stops audio capture
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return ErrNotRunning
	}
	c.stopLocked()
	return nil
}

func (c *Capture) stopLocked() {
	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
	if c.chunker != nil {
		if n := c.chunker.Dropped(); n > 0 {
			c.logger.Warn("chunks dropped", "count", n)
		}
		c.chunker.Close()
	}
	c.running = false
}

// Close releases all audio resources
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		c.stopLocked()
	}

	if c.ctx != nil {
		if err := c.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninit context: %w", err)
		}
		c.ctx.Free()
		c.ctx = nil
	}

	return nil
}

// IsRunning returns true if capture is active
func (c *Capture) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// bytesToInt16 converts little-endian 16-bit PCM bytes to samples.
// A trailing odd byte is ignored.
func bytesToInt16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}
