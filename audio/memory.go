package audio

import (
	"context"
	"sync"

	"github.com/gopxl/beep"
)

// MemoryOutput records everything played into a mono buffer
// Used headless and as the emit side of an in-process loopback
type MemoryOutput struct {
	sr beep.SampleRate

	mu        sync.Mutex
	samples   floatBuffer
	resumes   int
	closes    int
	resumeErr error
}

// NewMemoryOutput creates a recorder at the given rate
func NewMemoryOutput(sr beep.SampleRate) *MemoryOutput {
	return &MemoryOutput{sr: sr}
}

// Opener returns an OutputOpener that always yields this recorder
func (m *MemoryOutput) Opener() OutputOpener {
	return func(context.Context) (Output, error) {
		return m, nil
	}
}

// FailResume makes subsequent Resume calls return err
func (m *MemoryOutput) FailResume(err error) {
	m.mu.Lock()
	m.resumeErr = err
	m.mu.Unlock()
}

func (m *MemoryOutput) SampleRate() beep.SampleRate {
	return m.sr
}

func (m *MemoryOutput) Resume(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumes++
	return m.resumeErr
}

// Play renders s without real-time pacing
func (m *MemoryOutput) Play(ctx context.Context, s beep.Streamer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf := render(s)
	m.mu.Lock()
	m.samples = append(m.samples, buf...)
	m.mu.Unlock()
	return s.Err()
}

func (m *MemoryOutput) Close() error {
	m.mu.Lock()
	m.closes++
	m.mu.Unlock()
	return nil
}

// Samples returns a copy of the recorded signal
func (m *MemoryOutput) Samples() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.samples))
	copy(out, m.samples)
	return out
}

// Float32 returns the recorded signal in capture format
func (m *MemoryOutput) Float32() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float32, len(m.samples))
	for i, v := range m.samples {
		out[i] = float32(v)
	}
	return out
}

// Counts returns how many times Resume and Close were called
func (m *MemoryOutput) Counts() (resumes, closes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resumes, m.closes
}

// Reset drops recorded samples and counters
func (m *MemoryOutput) Reset() {
	m.mu.Lock()
	m.samples = nil
	m.resumes = 0
	m.closes = 0
	m.mu.Unlock()
}
