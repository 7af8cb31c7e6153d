// internal/audio/chunker.go
package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrStopped is returned by ReadChunk once the stream has been stopped
var ErrStopped = errors.New("audio stream stopped")

var (
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	ErrInvalidQueueSize = errors.New("queue size must be positive")
)

// Chunker regroups device buffers of arbitrary size into fixed-size chunks.
// Write is called from the audio thread and never blocks: a completed chunk
// is dropped when the queue is full.
type Chunker struct {
	size int

	mu      sync.Mutex
	pending []int16
	closed  bool

	out       chan []int16
	done      chan struct{}
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewChunker creates a chunker emitting chunks of size samples with room for
// queue undelivered chunks.
func NewChunker(size, queue int) (*Chunker, error) {
	if size <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if queue <= 0 {
		return nil, ErrInvalidQueueSize
	}
	return &Chunker{
		size:    size,
		pending: make([]int16, 0, size*2),
		out:     make(chan []int16, queue),
		done:    make(chan struct{}),
	}, nil
}

// Write appends samples and queues every completed chunk.
func (c *Chunker) Write(samples []int16) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.pending = append(c.pending, samples...)
	off := 0
	for len(c.pending)-off >= c.size {
		chunk := make([]int16, c.size)
		copy(chunk, c.pending[off:off+c.size])
		off += c.size

		select {
		case c.out <- chunk:
			c.delivered.Add(1)
		default:
			c.dropped.Add(1)
		}
	}
	if off > 0 {
		c.pending = append(c.pending[:0], c.pending[off:]...)
	}
}

// ReadChunk blocks until a chunk is available, the chunker is closed or ctx
// is done. Chunks queued before Close are still returned.
func (c *Chunker) ReadChunk(ctx context.Context) ([]int16, error) {
	select {
	case chunk := <-c.out:
		return chunk, nil
	default:
	}

	select {
	case chunk := <-c.out:
		return chunk, nil
	case <-c.done:
		select {
		case chunk := <-c.out:
			return chunk, nil
		default:
			return nil, ErrStopped
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting samples and wakes blocked readers. Safe to call twice.
func (c *Chunker) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.pending = nil
	close(c.done)
}

// Size returns the chunk length in samples
func (c *Chunker) Size() int {
	return c.size
}

// Delivered returns the number of chunks queued
func (c *Chunker) Delivered() uint64 {
	return c.delivered.Load()
}

// Dropped returns the number of chunks discarded because the queue was full
func (c *Chunker) Dropped() uint64 {
	return c.dropped.Load()
}
