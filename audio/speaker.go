package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/lixenwraith/soundkey/constant"
)

// speaker.Init owns a process-wide device context and may only succeed once
var (
	speakerOnce sync.Once
	speakerRate beep.SampleRate
	speakerErr  error
)

func initSpeaker(sr beep.SampleRate) error {
	speakerOnce.Do(func() {
		speakerRate = sr
		speakerErr = speaker.Init(sr, sr.N(constant.SpeakerBufferDuration))
	})
	if speakerErr != nil {
		return fmt.Errorf("%w: %v", ErrNoAudioBackend, speakerErr)
	}
	return nil
}

// SpeakerOutput plays through the beep speaker
// The underlying device is shared; Close suspends it rather than tearing it down
type SpeakerOutput struct {
	sr        beep.SampleRate
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// OpenSpeaker initializes the speaker on first use
func OpenSpeaker(sr beep.SampleRate) (*SpeakerOutput, error) {
	if err := initSpeaker(sr); err != nil {
		return nil, err
	}
	return &SpeakerOutput{sr: speakerRate}, nil
}

// SampleRate returns the device rate, fixed by the first open
func (o *SpeakerOutput) SampleRate() beep.SampleRate {
	return o.sr
}

// Resume wakes a suspended device
func (o *SpeakerOutput) Resume(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrOutputClosed
	}
	return speaker.Resume()
}

// Play schedules s and blocks until it drains or ctx is done
func (o *SpeakerOutput) Play(ctx context.Context, s beep.Streamer) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrOutputClosed
	}
	o.mu.Unlock()

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

// Close stops anything still scheduled and suspends the device
func (o *SpeakerOutput) Close() error {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		o.mu.Unlock()

		speaker.Clear()
		o.closeErr = speaker.Suspend()
	})
	return o.closeErr
}
