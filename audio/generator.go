package audio

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"

	"github.com/lixenwraith/soundkey/constant"
	"github.com/lixenwraith/soundkey/tone"
)

// floatBuffer is mono float64 samples
type floatBuffer []float64

// burst streams one sine tone under a linear attack/decay envelope
// Envelope rises from floor to peak over attack, then falls back to floor at the end
type burst struct {
	phase    float64
	phaseInc float64
	total    int
	attack   int
	peak     float64
	pos      int
}

// newBurst creates a burst streamer
func newBurst(sr beep.SampleRate, freq float64, dur, attack time.Duration, peak float64) *burst {
	total := sr.N(dur)
	att := sr.N(attack)
	if att >= total {
		att = total / 2
	}
	return &burst{
		phaseInc: freq / float64(sr),
		total:    total,
		attack:   att,
		peak:     peak,
	}
}

func (b *burst) Stream(samples [][2]float64) (n int, ok bool) {
	if b.pos >= b.total {
		return 0, false
	}
	for i := range samples {
		if b.pos >= b.total {
			return i, true
		}
		v := math.Sin(2*math.Pi*b.phase) * b.envelope()
		samples[i][0] = v
		samples[i][1] = v

		b.phase += b.phaseInc
		if b.phase >= 1.0 {
			b.phase -= 1.0
		}
		b.pos++
	}
	return len(samples), true
}

func (b *burst) Err() error {
	return nil
}

// envelope returns the gain at the current position
func (b *burst) envelope() float64 {
	floor := constant.ToneEnvelopeFloor
	if b.pos < b.attack {
		return floor + (b.peak-floor)*float64(b.pos)/float64(b.attack)
	}
	decay := b.total - b.attack
	if decay <= 0 {
		return b.peak
	}
	return b.peak + (floor-b.peak)*float64(b.pos-b.attack)/float64(decay)
}

// toneSequence lays bursts out back to back at the configured spacing
// followed by the guard interval, under master gain
func toneSequence(sr beep.SampleRate, nibbles []tone.Nibble, opts EmitOptions) beep.Streamer {
	parts := make([]beep.Streamer, 0, len(nibbles)*2+1)
	gap := sr.N(opts.Spacing) - sr.N(opts.ToneDuration)

	for _, n := range nibbles {
		parts = append(parts, newBurst(sr, tone.Frequency(n), opts.ToneDuration, opts.Attack, opts.Peak))
		// beep.Silence plays forever on negative counts
		if gap > 0 {
			parts = append(parts, beep.Silence(gap))
		}
	}
	if g := sr.N(opts.Guard); g > 0 {
		parts = append(parts, beep.Silence(g))
	}

	return withGain(beep.Seq(parts...), opts.Gain)
}

// withGain scales a streamer linearly
func withGain(s beep.Streamer, gain float64) beep.Streamer {
	if gain <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(gain)}
}

// sequenceLength returns the total sample count of an emission
func sequenceLength(sr beep.SampleRate, tones int, opts EmitOptions) int {
	per := sr.N(opts.Spacing)
	if d := sr.N(opts.ToneDuration); d > per {
		per = d
	}
	return tones*per + sr.N(opts.Guard)
}

// render drains a streamer into a mono buffer
func render(s beep.Streamer) floatBuffer {
	var out floatBuffer
	chunk := make([][2]float64, 512)
	for {
		n, ok := s.Stream(chunk)
		for i := 0; i < n; i++ {
			out = append(out, (chunk[i][0]+chunk[i][1])/2)
		}
		if !ok {
			return out
		}
	}
}
