package capture

import (
	"context"
	"fmt"
	"log"

	"github.com/lixenwraith/soundkey/clock"
)

// Opener starts capture sessions
type Opener interface {
	Open(ctx context.Context, opts Options) (FrameSource, error)
}

// Capturer opens sessions on a Source, ticking on Clock
type Capturer struct {
	Source Source
	Clock  clock.Clock
}

// NewCapturer creates a capturer on the wall clock
func NewCapturer(src Source) *Capturer {
	return &Capturer{Source: src, Clock: clock.New()}
}

// Open acquires the input and starts the frame ticker
// A context cancelled while the device was opening leaves nothing open
func (c *Capturer) Open(ctx context.Context, opts Options) (FrameSource, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	if c.Source == nil {
		return nil, fmt.Errorf("%w: no source configured", ErrNotFound)
	}
	clk := c.Clock
	if clk == nil {
		clk = clock.New()
	}

	analyser, err := NewAnalyser(opts.FFTSize, opts.Smoothing)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	h := newHandle(opts, clk, analyser)

	if opts.Constraints.Any() {
		log.Printf("Capture: input processing constraints %+v not supported, capturing raw", opts.Constraints)
	}

	input, err := c.Source.Open(ctx, opts.SampleRate, opts.Constraints, h.ring.write)
	if err != nil {
		h.Close()
		return nil, Classify(err)
	}
	h.input = input

	if err := ctx.Err(); err != nil {
		h.Close()
		return nil, err
	}

	h.start = clk.Now()
	h.ticker = clk.NewTicker(opts.Interval)
	return h, nil
}
