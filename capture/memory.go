package capture

import (
	"context"
	"sync"
	"time"
)

// MemorySource replays a fixed signal paced by the frame clock
// Used for tests and in-process loopback from audio.MemoryOutput
type MemorySource struct {
	Samples []float32
	Rate    int
	Loop    bool

	// OpenErr fails every Open
	OpenErr error
	// Gate, when set, holds Open until it is closed or ctx ends
	Gate <-chan struct{}

	mu    sync.Mutex
	calls []string
	live  int
}

// NewMemorySource creates a source replaying samples at rate
func NewMemorySource(samples []float32, rate int) *MemorySource {
	return &MemorySource{Samples: samples, Rate: rate}
}

func (s *MemorySource) Open(ctx context.Context, sampleRate int, c Constraints, write func([]float32)) (Input, error) {
	s.record("open")
	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}

	rate := s.Rate
	if rate <= 0 {
		rate = sampleRate
	}
	s.mu.Lock()
	s.live++
	s.mu.Unlock()
	return &memoryInput{src: s, rate: rate, write: write}, nil
}

// Calls returns the lifecycle calls seen so far, in order
func (s *MemorySource) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// Live returns the number of opened, not yet closed inputs
func (s *MemorySource) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

func (s *MemorySource) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

type memoryInput struct {
	src   *MemorySource
	rate  int
	write func([]float32)

	mu      sync.Mutex
	pos     int
	stopped bool
	closed  bool
}

func (in *memoryInput) SampleRate() int {
	return in.rate
}

// Pull writes the samples due by elapsed
func (in *memoryInput) Pull(elapsed time.Duration) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.stopped {
		return
	}

	due := int(elapsed.Seconds() * float64(in.rate))
	samples := in.src.Samples
	for in.pos < due {
		if len(samples) == 0 {
			in.pos = due
			return
		}
		idx := in.pos
		if in.src.Loop {
			idx %= len(samples)
		} else if idx >= len(samples) {
			// Past the end the signal is silence
			n := due - in.pos
			in.write(make([]float32, n))
			in.pos = due
			return
		}
		end := idx + (due - in.pos)
		if end > len(samples) {
			end = len(samples)
		}
		in.write(samples[idx:end])
		in.pos += end - idx
	}
}

func (in *memoryInput) Stop() error {
	in.mu.Lock()
	in.stopped = true
	in.mu.Unlock()
	in.src.record("stop")
	return nil
}

func (in *memoryInput) Close() error {
	in.mu.Lock()
	already := in.closed
	in.closed = true
	in.mu.Unlock()
	in.src.record("close")
	if !already {
		in.src.mu.Lock()
		in.src.live--
		in.src.mu.Unlock()
	}
	return nil
}

func (in *memoryInput) Err() error {
	return nil
}
