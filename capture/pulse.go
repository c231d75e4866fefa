package capture

import (
	"context"

	"github.com/jfreymuth/pulse"
)

// pulseLatency is the requested record buffer in seconds
const pulseLatency = 0.02

// PulseSource records from the default PulseAudio (or pipewire-pulse) source
type PulseSource struct {
	AppName string
}

func (s PulseSource) Open(ctx context.Context, sampleRate int, c Constraints, write func([]float32)) (Input, error) {
	name := s.AppName
	if name == "" {
		name = "soundkey"
	}

	client, err := pulse.NewClient(pulse.ClientApplicationName(name))
	if err != nil {
		return nil, Classify(err)
	}

	writer := pulse.Float32Writer(func(p []float32) (int, error) {
		write(p)
		return len(p), nil
	})
	stream, err := client.NewRecord(writer,
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordLatency(pulseLatency),
	)
	if err != nil {
		client.Close()
		return nil, Classify(err)
	}

	stream.Start()
	return &pulseInput{client: client, stream: stream, rate: sampleRate}, nil
}

type pulseInput struct {
	client *pulse.Client
	stream *pulse.RecordStream
	rate   int
}

func (in *pulseInput) SampleRate() int {
	return in.rate
}

func (in *pulseInput) Stop() error {
	in.stream.Stop()
	return nil
}

func (in *pulseInput) Close() error {
	in.stream.Close()
	in.client.Close()
	return nil
}

func (in *pulseInput) Err() error {
	return in.stream.Error()
}
