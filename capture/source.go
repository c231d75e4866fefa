// Package capture turns microphone input into periodic spectral frames
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/lixenwraith/soundkey/constant"
)

// Constraints are input processing requests
// Tone detection needs the raw signal, so all are off by default
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// Any reports whether any processing was requested
func (c Constraints) Any() bool {
	return c.EchoCancellation || c.NoiseSuppression || c.AutoGainControl
}

// Input is an open capture stream
type Input interface {
	SampleRate() int
	// Stop halts sample delivery
	Stop() error
	// Close releases the device connection
	Close() error
	// Err reports an asynchronous stream failure, nil while healthy
	Err() error
}

// Clocked inputs produce samples on the frame clock instead of a device thread
// Pull delivers everything due up to elapsed since the handle opened
type Clocked interface {
	Pull(elapsed time.Duration)
}

// Source opens inputs that push mono float32 samples into write
type Source interface {
	Open(ctx context.Context, sampleRate int, c Constraints, write func([]float32)) (Input, error)
}

// Options configures one capture session
type Options struct {
	FFTSize     int
	Smoothing   float64
	Duration    time.Duration // 0 runs until closed
	Interval    time.Duration // Frame cadence
	SampleRate  int
	Constraints Constraints
}

// LoginOptions is the one-shot verification profile
func LoginOptions() Options {
	return Options{
		FFTSize:    constant.AnalyserFFTSize,
		Smoothing:  constant.LoginSmoothing,
		Duration:   constant.LoginCaptureDuration,
		Interval:   constant.FrameInterval,
		SampleRate: constant.AudioSampleRate,
	}
}

// DispatchOptions is the continuous listening profile
func DispatchOptions() Options {
	return Options{
		FFTSize:    constant.AnalyserFFTSize,
		Smoothing:  constant.DispatchSmoothing,
		Interval:   constant.FrameInterval,
		SampleRate: constant.AudioSampleRate,
	}
}

func (o Options) normalize() (Options, error) {
	if o.FFTSize < constant.AnalyserFFTSize || o.FFTSize&(o.FFTSize-1) != 0 {
		return o, fmt.Errorf("%w: fft size %d must be a power of two >= %d", ErrCapture, o.FFTSize, constant.AnalyserFFTSize)
	}
	if o.Duration < 0 {
		return o, fmt.Errorf("%w: negative duration", ErrCapture)
	}
	if o.Interval <= 0 {
		o.Interval = constant.FrameInterval
	}
	if o.SampleRate <= 0 {
		o.SampleRate = constant.AudioSampleRate
	}
	return o, nil
}
