package capture

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/lixenwraith/soundkey/constant"
)

// Analyser converts a time-domain block into byte-scaled magnitude bins
// Blackman window, real FFT, |X|/N, exponential smoothing, decibel scaling
type Analyser struct {
	size      int
	smoothing float64
	minDb     float64
	maxDb     float64

	window   []float64
	block    []float64
	smoothed []float64
}

// NewAnalyser creates an analyser for blocks of size samples
// size must be a power of two; smoothing is the time constant in [0,1)
func NewAnalyser(size int, smoothing float64) (*Analyser, error) {
	if size < 32 || size&(size-1) != 0 {
		return nil, fmt.Errorf("fft size %d is not a power of two >= 32", size)
	}
	if smoothing < 0 || smoothing >= 1 {
		return nil, fmt.Errorf("smoothing %v outside [0,1)", smoothing)
	}

	a := &Analyser{
		size:      size,
		smoothing: smoothing,
		minDb:     constant.AnalyserMinDecibel,
		maxDb:     constant.AnalyserMaxDecibel,
		window:    window.Blackman(size),
		block:     make([]float64, size),
		smoothed:  make([]float64, size/2),
	}
	return a, nil
}

// Size returns the FFT size
func (a *Analyser) Size() int {
	return a.size
}

// Bins returns the number of frequency bins, half the FFT size
func (a *Analyser) Bins() int {
	return a.size / 2
}

// Reset clears smoothing history
func (a *Analyser) Reset() {
	for i := range a.smoothed {
		a.smoothed[i] = 0
	}
}

// Process analyses samples into out; len(samples) must equal Size and len(out) Bins
func (a *Analyser) Process(samples []float32, out []uint8) {
	for i := range a.block {
		a.block[i] = float64(samples[i]) * a.window[i]
	}

	spectrum := fft.FFTReal(a.block)
	n := float64(a.size)
	rng := a.maxDb - a.minDb

	for k := range a.smoothed {
		mag := cmplx.Abs(spectrum[k]) / n
		v := a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		// Keep history finite
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		a.smoothed[k] = v

		if v <= 0 {
			out[k] = 0
			continue
		}
		db := 20 * math.Log10(v)
		scaled := math.Floor(255 * (db - a.minDb) / rng)
		switch {
		case scaled < 0:
			out[k] = 0
		case scaled > 255:
			out[k] = 255
		default:
			out[k] = uint8(scaled)
		}
	}
}
