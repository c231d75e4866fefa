package capture

import (
	"context"
	"errors"
	"log"
	"strings"
)

// AutoSource tries native PulseAudio first, then a recorder CLI
// A blocked microphone is final and not retried on the next source
type AutoSource struct {
	Sources []Source
}

// NewSource builds the source named by kind: "pulse", "pipe" or "auto"
func NewSource(kind string) Source {
	switch strings.ToLower(kind) {
	case "pulse":
		return PulseSource{}
	case "pipe":
		return PipeSource{}
	default:
		return AutoSource{Sources: []Source{PulseSource{}, PipeSource{}}}
	}
}

func (a AutoSource) Open(ctx context.Context, sampleRate int, c Constraints, write func([]float32)) (Input, error) {
	var lastErr error = ErrNotFound
	for _, src := range a.Sources {
		in, err := src.Open(ctx, sampleRate, c, write)
		if err == nil {
			return in, nil
		}
		err = Classify(err)
		if errors.Is(err, ErrBlocked) || ctx.Err() != nil {
			return nil, err
		}
		log.Printf("Capture: source unavailable: %v", err)
		lastErr = err
	}
	return nil, lastErr
}
