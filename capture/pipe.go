package capture

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/lixenwraith/soundkey/audio"
)

// pipeChunk is samples per write callback
const pipeChunk = 512

// PipeSource records through a CLI recorder emitting float32le mono on stdout
type PipeSource struct{}

func (PipeSource) Open(ctx context.Context, sampleRate int, c Constraints, write func([]float32)) (Input, error) {
	backend, err := audio.DetectRecorder(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	cmd := exec.Command(backend.Path, backend.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, Classify(err)
	}
	if err := cmd.Start(); err != nil {
		return nil, Classify(err)
	}

	in := &pipeInput{
		backend: backend,
		cmd:     cmd,
		rate:    sampleRate,
		done:    make(chan struct{}),
	}
	go in.read(stdout, write)
	return in, nil
}

type pipeInput struct {
	backend *audio.BackendConfig
	cmd     *exec.Cmd
	rate    int

	stopped  atomic.Bool
	err      atomic.Value // error
	done      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
}

func (in *pipeInput) read(r io.Reader, write func([]float32)) {
	defer close(in.done)

	br := bufio.NewReaderSize(r, pipeChunk*4*4)
	raw := make([]byte, pipeChunk*4)
	samples := make([]float32, pipeChunk)

	for {
		n, err := io.ReadFull(br, raw)
		frames := n / 4
		for i := 0; i < frames; i++ {
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		if frames > 0 && !in.stopped.Load() {
			write(samples[:frames])
		}
		if err != nil {
			if !in.stopped.Load() {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					err = fmt.Errorf("%s exited", in.backend.Name)
				}
				in.err.Store(err)
			}
			return
		}
	}
}

func (in *pipeInput) SampleRate() int {
	return in.rate
}

// Stop kills the recorder, ending the sample stream
func (in *pipeInput) Stop() error {
	in.stopOnce.Do(func() {
		in.stopped.Store(true)
		if in.cmd.Process != nil {
			in.cmd.Process.Kill()
		}
	})
	return nil
}

// Close reaps the recorder
func (in *pipeInput) Close() error {
	in.closeOnce.Do(func() {
		in.Stop()
		<-in.done
		// Killed on Stop, so only a failure before that is worth reporting
		if err := in.Err(); err != nil {
			log.Printf("Capture: %s: %v", in.backend.Name, err)
		}
		in.cmd.Wait()
	})
	return nil
}

func (in *pipeInput) Err() error {
	if v := in.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}
