package login

import (
	"sort"

	"github.com/lixenwraith/soundkey/capture"
	"github.com/lixenwraith/soundkey/constant"
	"github.com/lixenwraith/soundkey/tone"
)

// accumulator sums byte magnitudes per bin across frames
type accumulator struct {
	sum        []float64
	frames     int
	sampleRate int
	fftSize    int
}

func (a *accumulator) add(f capture.Frame) {
	if a.sum == nil {
		a.sum = make([]float64, len(f.Bins))
		a.sampleRate = f.SampleRate
		a.fftSize = f.FFTSize
	}
	for i, v := range f.Bins {
		if i < len(a.sum) {
			a.sum[i] += float64(v)
		}
	}
	a.frames++
}

// carrierPower returns the time-averaged power around each carrier
// Each carrier averages bins round(hz/binHz)±radius, indices clamped to range
func (a *accumulator) carrierPower(radius int) [constant.CarrierCount]float64 {
	var out [constant.CarrierCount]float64
	if a.frames == 0 || len(a.sum) == 0 {
		return out
	}

	frame := capture.Frame{Bins: make([]uint8, len(a.sum)), SampleRate: a.sampleRate, FFTSize: a.fftSize}
	last := len(a.sum) - 1
	for c, hz := range tone.Carriers() {
		centre := frame.IndexOf(hz)
		var sum float64
		count := 0
		for k := -radius; k <= radius; k++ {
			idx := centre + k
			if idx < 0 {
				idx = 0
			} else if idx > last {
				idx = last
			}
			sum += a.sum[idx] / float64(a.frames)
			count++
		}
		out[c] = sum / float64(count)
	}
	return out
}

// topCarriers returns the four strongest carriers, lower index first on ties
func topCarriers(power [constant.CarrierCount]float64) [constant.LoginToneCount]tone.Nibble {
	idx := make([]int, len(power))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return power[idx[i]] > power[idx[j]]
	})

	var out [constant.LoginToneCount]tone.Nibble
	for i := range out {
		out[i] = tone.Nibble(idx[i])
	}
	return out
}
