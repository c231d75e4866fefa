package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/gopxl/beep"

	"github.com/lixenwraith/soundkey/constant"
)

// pipeExitTimeout bounds how long Close waits for the player to drain
const pipeExitTimeout = time.Second

// PipeOutput streams s16le stereo into a CLI player subprocess or an OSS device
type PipeOutput struct {
	sr      beep.SampleRate
	backend *BackendConfig
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	ossFile *os.File // For direct OSS writes
	writer  io.Writer

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	exited    chan struct{}
}

// OpenPipe detects a playback backend and starts it
func OpenPipe(sr beep.SampleRate) (*PipeOutput, error) {
	backend, err := DetectBackend(int(sr))
	if err != nil {
		return nil, err
	}

	p := &PipeOutput{
		sr:      sr,
		backend: backend,
		exited:  make(chan struct{}),
	}

	if backend.Type == BackendOSS {
		// Direct file write for OSS
		f, err := os.OpenFile(backend.Path, os.O_WRONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoAudioBackend, err)
		}
		p.ossFile = f
		p.writer = f
		close(p.exited)
		return p, nil
	}

	// Exec-based backend
	cmd := exec.Command(backend.Path, backend.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoAudioBackend, err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("%w: %v", ErrNoAudioBackend, err)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.writer = stdin

	// Monitor process
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("Audio: %s exited: %v", backend.Name, err)
		}
		close(p.exited)
	}()

	return p, nil
}

// SampleRate returns the rate the player was started at
func (p *PipeOutput) SampleRate() beep.SampleRate {
	return p.sr
}

// Backend returns the detected player
func (p *PipeOutput) Backend() *BackendConfig {
	return p.backend
}

// Resume checks the player is still alive
func (p *PipeOutput) Resume(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrOutputClosed
	}
	if p.cmd != nil {
		select {
		case <-p.exited:
			return ErrPipeClosed
		default:
		}
	}
	return nil
}

// Play writes s to the player one buffer per tick until it drains
func (p *PipeOutput) Play(ctx context.Context, s beep.Streamer) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrOutputClosed
	}
	p.mu.Unlock()

	samplesPerTick := p.sr.N(constant.AudioBufferDuration)
	stereo := make([][2]float64, samplesPerTick)
	mixBuf := make([]float64, samplesPerTick)
	outBytes := make([]byte, samplesPerTick*constant.AudioBytesPerFrame)

	ticker := time.NewTicker(constant.AudioBufferDuration)
	defer ticker.Stop()

	for {
		n, ok := s.Stream(stereo)
		for i := 0; i < samplesPerTick; i++ {
			if i < n {
				mixBuf[i] = (stereo[i][0] + stereo[i][1]) / 2
			} else {
				mixBuf[i] = 0
			}
		}

		// Convert to int16 bytes with soft limiting
		floatToBytes(mixBuf, outBytes)
		if _, err := p.writer.Write(outBytes); err != nil {
			return fmt.Errorf("%w: %v", ErrPipeClosed, err)
		}

		if !ok || n < samplesPerTick {
			if err := s.Err(); err != nil {
				return err
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close ends the stream and reaps the player
func (p *PipeOutput) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		if p.stdin != nil {
			p.stdin.Close()
		}
		if p.ossFile != nil {
			p.ossFile.Close()
		}

		select {
		case <-p.exited:
		case <-time.After(pipeExitTimeout):
			if p.cmd != nil && p.cmd.Process != nil {
				p.cmd.Process.Kill()
			}
			<-p.exited
		}
	})
	return nil
}

// floatToBytes converts float64 mono to interleaved stereo int16 LE bytes
// Applies soft limiting before hard clip
func floatToBytes(in []float64, out []byte) {
	for i, v := range in {
		// Soft limiter (tanh-style)
		if v > 0.8 {
			v = 0.8 + 0.2*(1.0-1.0/(1.0+(v-0.8)*5.0))
		} else if v < -0.8 {
			v = -0.8 - 0.2*(1.0-1.0/(1.0+(-v-0.8)*5.0))
		}

		// Hard clip
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}

		i16 := int16(v * 32767)
		idx := i * 4
		binary.LittleEndian.PutUint16(out[idx:], uint16(i16))   // L
		binary.LittleEndian.PutUint16(out[idx+2:], uint16(i16)) // R
	}
}
