package capture

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/lixenwraith/soundkey/clock"
)

// FrameSource yields spectral frames until closed or, when finite, until io.EOF
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// Handle is an open capture session
// Fields may be unset when construction failed partway; such a handle yields ErrClosed
type Handle struct {
	opts  Options
	clock clock.Clock
	input Input
	ring  *ring

	mu       sync.Mutex
	analyser *Analyser
	ticker   clock.Ticker
	block    []float32
	start    time.Time
	frames   int

	done      chan struct{}
	closeOnce sync.Once
}

func newHandle(opts Options, clk clock.Clock, analyser *Analyser) *Handle {
	return &Handle{
		opts:     opts,
		clock:    clk,
		ring:     newRing(opts.FFTSize),
		analyser: analyser,
		block:    make([]float32, opts.FFTSize),
		done:     make(chan struct{}),
	}
}

// Next blocks for the next tick and analyses the latest samples
func (h *Handle) Next(ctx context.Context) (Frame, error) {
	if h.ticker == nil || h.input == nil {
		return Frame{}, ErrClosed
	}

	var at time.Time
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-h.done:
		return Frame{}, ErrClosed
	case at = <-h.ticker.C():
	}

	if err := h.input.Err(); err != nil {
		return Frame{}, Classify(err)
	}

	elapsed := at.Sub(h.start)
	if h.opts.Duration > 0 && elapsed >= h.opts.Duration {
		return Frame{}, io.EOF
	}
	if c, ok := h.input.(Clocked); ok {
		c.Pull(elapsed)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.analyser == nil {
		return Frame{}, ErrClosed
	}

	h.ring.snapshot(h.block)
	bins := make([]uint8, h.analyser.Bins())
	h.analyser.Process(h.block, bins)
	h.frames++

	return Frame{
		Bins:       bins,
		SampleRate: h.input.SampleRate(),
		FFTSize:    h.analyser.Size(),
		At:         at,
	}, nil
}

// Frames returns how many frames were produced
func (h *Handle) Frames() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames
}

// Close tears the session down: ticker, analyser, input tracks, input context
// Idempotent; teardown errors are logged, not returned
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)

		if h.ticker != nil {
			h.ticker.Stop()
		}

		h.mu.Lock()
		h.analyser = nil
		h.mu.Unlock()

		if h.input != nil {
			if err := h.input.Stop(); err != nil {
				log.Printf("Capture: stop input: %v", err)
			}
			if err := h.input.Close(); err != nil {
				log.Printf("Capture: close input: %v", err)
			}
		}
	})
	return nil
}
