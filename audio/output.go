package audio

import (
	"context"
	"errors"
	"log"

	"github.com/gopxl/beep"
)

// Output is a playback device for one emission
// Resume must be called before Play; Close releases the device and is idempotent
type Output interface {
	SampleRate() beep.SampleRate
	Resume(ctx context.Context) error
	Play(ctx context.Context, s beep.Streamer) error
	Close() error
}

// OutputOpener acquires an Output
// Returns ErrNoAudioBackend when the host has no playback capability
type OutputOpener func(ctx context.Context) (Output, error)

// NewOpener selects an output backend from config
// Auto tries the beep speaker first, then a CLI pipe player
func NewOpener(cfg *AudioConfig) OutputOpener {
	if cfg == nil {
		cfg = DefaultAudioConfig()
	}
	sr := beep.SampleRate(cfg.SampleRate)

	if !cfg.Enabled {
		return noOutput
	}

	switch cfg.Backend {
	case OutputNone:
		return noOutput
	case OutputSpeaker:
		return func(ctx context.Context) (Output, error) {
			return OpenSpeaker(sr)
		}
	case OutputPipe:
		return func(ctx context.Context) (Output, error) {
			return OpenPipe(sr)
		}
	default:
		return func(ctx context.Context) (Output, error) {
			out, err := OpenSpeaker(sr)
			if err == nil {
				return out, nil
			}
			log.Printf("Audio: speaker unavailable (%v), trying pipe backend", err)
			return OpenPipe(sr)
		}
	}
}

func noOutput(context.Context) (Output, error) {
	return nil, ErrNoAudioBackend
}

// IsUnavailable reports whether err means no playback is possible
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrNoAudioBackend)
}
