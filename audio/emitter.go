package audio

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gopxl/beep"

	"github.com/lixenwraith/soundkey/constant"
	"github.com/lixenwraith/soundkey/tone"
)

// EmitOptions controls tone sequence timing and level
type EmitOptions struct {
	ToneDuration time.Duration // Burst length, envelope back at floor at the end
	Spacing      time.Duration // Start-to-start interval
	Attack       time.Duration
	Gain         float64 // Master gain, clamped to [0,1]
	Peak         float64 // Envelope peak
	Guard        time.Duration
	Tones        int
}

// DefaultEmitOptions returns the login emission profile
func DefaultEmitOptions() EmitOptions {
	return EmitOptions{
		ToneDuration: constant.LoginToneDuration,
		Spacing:      constant.LoginToneSpacing,
		Attack:       constant.LoginToneAttack,
		Gain:         constant.LoginMasterGain,
		Peak:         constant.LoginTonePeak,
		Guard:        constant.LoginToneGuard,
		Tones:        constant.LoginToneCount,
	}
}

func (o EmitOptions) normalize() (EmitOptions, error) {
	if o.Gain < 0 {
		o.Gain = 0
	} else if o.Gain > 1 {
		o.Gain = 1
	}
	switch {
	case o.Tones <= 0:
		return o, fmt.Errorf("%w: tone count %d", ErrInvalidOptions, o.Tones)
	case o.Attack < 0 || o.ToneDuration <= o.Attack:
		return o, fmt.Errorf("%w: tone duration %v must exceed attack %v", ErrInvalidOptions, o.ToneDuration, o.Attack)
	case o.Spacing < o.ToneDuration:
		return o, fmt.Errorf("%w: spacing %v shorter than tone %v", ErrInvalidOptions, o.Spacing, o.ToneDuration)
	case o.Peak <= 0 || o.Peak > 1:
		return o, fmt.Errorf("%w: peak %v", ErrInvalidOptions, o.Peak)
	case o.Guard < 0:
		return o, fmt.Errorf("%w: guard %v", ErrInvalidOptions, o.Guard)
	}
	return o, nil
}

// DemoPayload is emitted when no secret is supplied
func DemoPayload() []byte {
	return []byte{0x2, 0x3, 0x0, 0x4}
}

// PayloadNibbles returns the carrier nibbles emitted for payload
// Each of the first count bytes contributes its low nibble
func PayloadNibbles(payload []byte, count int) ([]tone.Nibble, error) {
	if len(payload) == 0 {
		payload = DemoPayload()
	}
	if len(payload) < count {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrShortPayload, len(payload), count)
	}
	nibbles := make([]tone.Nibble, count)
	for i := range nibbles {
		nibbles[i] = tone.Nibble(payload[i] & 0x0f)
	}
	return nibbles, nil
}

// Emitter renders payloads as carrier tone sequences
type Emitter struct {
	open   OutputOpener
	volume float64
}

// NewEmitter creates an emitter; cfg may be nil
func NewEmitter(open OutputOpener, cfg *AudioConfig) *Emitter {
	if cfg == nil {
		cfg = DefaultAudioConfig()
	}
	if open == nil {
		open = NewOpener(cfg)
	}
	return &Emitter{open: open, volume: cfg.MasterVolume}
}

// Emit plays the nibble sequence for payload and blocks until it drained
// Missing playback capability is not an error: emission is skipped
func (e *Emitter) Emit(ctx context.Context, payload []byte, opts EmitOptions) error {
	opts, err := opts.normalize()
	if err != nil {
		return err
	}
	nibbles, err := PayloadNibbles(payload, opts.Tones)
	if err != nil {
		return err
	}
	opts.Gain *= e.volume

	return e.play(ctx, func(sr beep.SampleRate) beep.Streamer {
		return toneSequence(sr, nibbles, opts)
	})
}

// PlayTone plays a single enveloped tone at hz
func (e *Emitter) PlayTone(ctx context.Context, hz float64, dur time.Duration, volume float64) error {
	if hz <= 0 || dur <= 0 {
		return fmt.Errorf("%w: tone %vHz for %v", ErrInvalidOptions, hz, dur)
	}
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}
	attack := constant.LoginToneAttack
	if attack >= dur {
		attack = dur / 2
	}
	peak := volume
	if peak <= 0 {
		peak = constant.ToneEnvelopeFloor
	}

	return e.play(ctx, func(sr beep.SampleRate) beep.Streamer {
		return withGain(newBurst(sr, hz, dur, attack, peak), volume*e.volume)
	})
}

// play acquires an output, resumes it, plays, and always releases it
func (e *Emitter) play(ctx context.Context, build func(beep.SampleRate) beep.Streamer) error {
	out, err := e.open(ctx)
	if IsUnavailable(err) {
		log.Printf("Audio: no output available, skipping: %v", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			log.Printf("Audio: output close: %v", cerr)
		}
	}()

	if err := out.Resume(ctx); err != nil {
		return fmt.Errorf("resume output: %w", err)
	}
	return out.Play(ctx, build(out.SampleRate()))
}
