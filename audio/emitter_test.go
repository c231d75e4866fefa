package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/gopxl/beep"

	"github.com/lixenwraith/soundkey/tone"
)

const testRate = beep.SampleRate(48000)

// goertzel returns the signal power at hz
func goertzel(samples []float64, sr beep.SampleRate, hz float64) float64 {
	w := 2 * math.Pi * hz / float64(sr)
	coeff := 2 * math.Cos(w)
	var s1, s2 float64
	for _, x := range samples {
		s0 := x + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	return s1*s1 + s2*s2 - coeff*s1*s2
}

// TestEmitSequenceLayout verifies each burst sits in its slot on its carrier
func TestEmitSequenceLayout(t *testing.T) {
	out := NewMemoryOutput(testRate)
	e := NewEmitter(out.Opener(), nil)
	opts := DefaultEmitOptions()

	payload := []byte{0x01, 0x12, 0xa3, 0x04, 0xff}
	if err := e.Emit(context.Background(), payload, opts); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	samples := out.Samples()
	if want := sequenceLength(testRate, 4, opts); len(samples) != want {
		t.Fatalf("Expected %d samples, got %d", want, len(samples))
	}

	slot := testRate.N(opts.Spacing)
	burstLen := testRate.N(opts.ToneDuration)
	expected := []tone.Nibble{1, 2, 3, 4}

	for i, n := range expected {
		window := samples[i*slot : i*slot+burstLen]
		on := goertzel(window, testRate, tone.Frequency(n))
		for _, other := range []tone.Nibble{0, 5, 9, 15} {
			off := goertzel(window, testRate, tone.Frequency(other))
			if off*10 > on {
				t.Errorf("Burst %d: expected carrier %d to dominate carrier %d (%g vs %g)", i, n, other, on, off)
			}
		}

		gap := samples[i*slot+burstLen : (i+1)*slot]
		for j, v := range gap {
			if v != 0 {
				t.Fatalf("Burst %d: expected silence after tone, got %g at %d", i, v, j)
			}
		}
	}

	guard := samples[4*slot:]
	for _, v := range guard {
		if v != 0 {
			t.Fatal("Expected silent guard interval")
		}
	}

	resumes, closes := out.Counts()
	if resumes != 1 || closes != 1 {
		t.Errorf("Expected 1 resume and 1 close, got %d and %d", resumes, closes)
	}
}

// TestEmitPeakLevel verifies master gain times envelope peak bounds the signal
func TestEmitPeakLevel(t *testing.T) {
	out := NewMemoryOutput(testRate)
	e := NewEmitter(out.Opener(), nil)
	opts := DefaultEmitOptions()

	if err := e.Emit(context.Background(), []byte{0, 0, 0, 0}, opts); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	limit := opts.Gain * opts.Peak
	var peak float64
	for _, v := range out.Samples() {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak > limit+1e-9 {
		t.Errorf("Expected peak <= %f, got %f", limit, peak)
	}
	if peak < limit*0.9 {
		t.Errorf("Expected peak near %f, got %f", limit, peak)
	}
}

// TestEmitDemoPayload verifies empty payload falls back to the demo sequence
func TestEmitDemoPayload(t *testing.T) {
	nibbles, err := PayloadNibbles(nil, 4)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := []tone.Nibble{2, 3, 0, 4}
	for i := range expected {
		if nibbles[i] != expected[i] {
			t.Errorf("Expected nibble %d = %d, got %d", i, expected[i], nibbles[i])
		}
	}
}

// TestEmitShortPayload verifies 1..3 byte payloads are rejected before output opens
func TestEmitShortPayload(t *testing.T) {
	out := NewMemoryOutput(testRate)
	e := NewEmitter(out.Opener(), nil)

	for n := 1; n < 4; n++ {
		err := e.Emit(context.Background(), make([]byte, n), DefaultEmitOptions())
		if !errors.Is(err, ErrShortPayload) {
			t.Errorf("Expected ErrShortPayload for %d bytes, got %v", n, err)
		}
	}
	if resumes, _ := out.Counts(); resumes != 0 {
		t.Errorf("Expected output untouched, got %d resumes", resumes)
	}
}

// TestEmitNoBackend verifies silent no-op without playback capability
func TestEmitNoBackend(t *testing.T) {
	cfg := DefaultAudioConfig()
	cfg.Backend = OutputNone
	e := NewEmitter(nil, cfg)

	start := time.Now()
	if err := e.Emit(context.Background(), nil, DefaultEmitOptions()); err != nil {
		t.Errorf("Expected nil error without backend, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected immediate return, took %v", elapsed)
	}
}

// TestEmitWrappedNoBackend verifies a wrapped missing-backend error is still skipped
func TestEmitWrappedNoBackend(t *testing.T) {
	opened := 0
	open := func(ctx context.Context) (Output, error) {
		opened++
		return nil, fmt.Errorf("pipe: %w", ErrNoAudioBackend)
	}
	e := NewEmitter(open, nil)

	if err := e.PlayTone(context.Background(), 1000, 100*time.Millisecond, 0.5); err != nil {
		t.Errorf("Expected nil error without backend, got %v", err)
	}
	if opened != 1 {
		t.Errorf("Expected one open attempt, got %d", opened)
	}
	if IsUnavailable(errors.New("device busy")) {
		t.Error("Expected unrelated error to leave playback available")
	}
}

// TestEmitResumeFailureCloses verifies the output is released on error
func TestEmitResumeFailureCloses(t *testing.T) {
	out := NewMemoryOutput(testRate)
	out.FailResume(errors.New("suspended"))
	e := NewEmitter(out.Opener(), nil)

	if err := e.Emit(context.Background(), nil, DefaultEmitOptions()); err == nil {
		t.Error("Expected resume error")
	}
	if _, closes := out.Counts(); closes != 1 {
		t.Errorf("Expected output closed once, got %d", closes)
	}
	if len(out.Samples()) != 0 {
		t.Error("Expected nothing played")
	}
}

// TestEmitOptionsValidation verifies invalid timing is rejected and gain clamped
func TestEmitOptionsValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*EmitOptions)
		valid  bool
	}{
		{"defaults", func(o *EmitOptions) {}, true},
		{"spacing below duration", func(o *EmitOptions) { o.Spacing = 200 * time.Millisecond }, false},
		{"attack too long", func(o *EmitOptions) { o.Attack = o.ToneDuration }, false},
		{"no tones", func(o *EmitOptions) { o.Tones = 0 }, false},
		{"zero peak", func(o *EmitOptions) { o.Peak = 0 }, false},
		{"gain above one", func(o *EmitOptions) { o.Gain = 3 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultEmitOptions()
			tt.modify(&opts)
			got, err := opts.normalize()
			if tt.valid && err != nil {
				t.Errorf("Expected valid, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("Expected ErrInvalidOptions, got %v", err)
			}
			if got.Gain > 1 {
				t.Errorf("Expected gain clamped to 1, got %f", got.Gain)
			}
		})
	}
}

// TestPlayTone verifies single tone length and frequency
func TestPlayTone(t *testing.T) {
	out := NewMemoryOutput(testRate)
	e := NewEmitter(out.Opener(), nil)

	if err := e.PlayTone(context.Background(), 1000, 600*time.Millisecond, 0.55); err != nil {
		t.Fatalf("PlayTone failed: %v", err)
	}
	samples := out.Samples()
	if want := testRate.N(600 * time.Millisecond); len(samples) != want {
		t.Errorf("Expected %d samples, got %d", want, len(samples))
	}
	if goertzel(samples, testRate, 1000) < 10*goertzel(samples, testRate, 1500) {
		t.Error("Expected 1000Hz to dominate")
	}

	if err := e.PlayTone(context.Background(), 0, time.Second, 0.5); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("Expected ErrInvalidOptions for 0Hz, got %v", err)
	}
}

// TestEmitCancelled verifies a cancelled context stops playback
func TestEmitCancelled(t *testing.T) {
	out := NewMemoryOutput(testRate)
	e := NewEmitter(out.Opener(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Emit(ctx, nil, DefaultEmitOptions()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if _, closes := out.Counts(); closes != 1 {
		t.Errorf("Expected output closed, got %d closes", closes)
	}
}
