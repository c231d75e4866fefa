// Package dispatch listens continuously and fires mapped actions on detected tones
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/soundkey/capture"
	"github.com/lixenwraith/soundkey/clock"
	"github.com/lixenwraith/soundkey/constant"
	"github.com/lixenwraith/soundkey/history"
	"github.com/lixenwraith/soundkey/mapping"
	"github.com/lixenwraith/soundkey/status"
)

var (
	ErrAlreadyListening = errors.New("already listening")
	ErrActionBlocked    = errors.New("action blocked")
)

// State of the listener
type State int32

const (
	StateIdle State = iota
	StateListening
)

func (s State) String() string {
	if s == StateListening {
		return "listening"
	}
	return "idle"
}

// Metric keys written into the status registry
const (
	MetricState      = "dispatch.state"
	MetricFrames     = "dispatch.frames"
	MetricGated      = "dispatch.gated"
	MetricFired      = "dispatch.fired"
	MetricBlocked    = "dispatch.blocked"
	MetricSuppressed = "dispatch.suppressed"
	MetricDominantHz = "dispatch.dominant_hz"
	MetricLevel      = "dispatch.level"
)

// MappingSource returns the mappings a session listens for
type MappingSource func() ([]mapping.Mapping, error)

// Event reports listener activity
type Event struct {
	Kind        history.Kind
	At          time.Time
	Message     string
	FrequencyHz float64
	DominantHz  float64
	MappingID   string
	Label       string
	Err         error
}

// Entry converts the event into an activity log line
func (e Event) Entry() history.Entry {
	return history.Entry{
		At:          e.At,
		Kind:        e.Kind,
		Message:     e.Message,
		FrequencyHz: e.FrequencyHz,
		DominantHz:  e.DominantHz,
		MappingID:   e.MappingID,
		Label:       e.Label,
	}
}

// Dispatcher owns at most one listening session
type Dispatcher struct {
	Capture  capture.Opener
	Mappings MappingSource
	Executor Executor
	Clock    clock.Clock
	Options  capture.Options

	MinHz       float64
	NoiseGate   uint8
	ToleranceHz float64
	Cooldown    time.Duration

	// OnEvent is called from the session goroutine; it must not block
	OnEvent func(Event)
	History history.Recorder
	Metrics *status.Registry

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDispatcher creates an idle dispatcher with the default tuning
func NewDispatcher(capt capture.Opener, mappings MappingSource, exec Executor) *Dispatcher {
	return &Dispatcher{
		Capture:     capt,
		Mappings:    mappings,
		Executor:    exec,
		Clock:       clock.New(),
		Options:     capture.DispatchOptions(),
		MinHz:       constant.DispatchMinHz,
		NoiseGate:   constant.DispatchNoiseGate,
		ToleranceHz: constant.DispatchToleranceHz,
		Cooldown:    constant.DispatchCooldown,
		Metrics:     status.NewRegistry(),
	}
}

// State returns the current listener state
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Start reads the mapping snapshot, opens capture and launches the session loop
// The session lives until Stop or until ctx ends, so pass a long-lived context
// A Stop issued while the device is opening ends the attempt without error
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.state == StateListening {
		d.mu.Unlock()
		return ErrAlreadyListening
	}
	sctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.state = StateListening
	d.cancel = cancel
	d.done = done
	d.mu.Unlock()

	m := d.bindMetrics()
	m.state.Store(StateListening.String())

	var list []mapping.Mapping
	var err error
	if d.Mappings != nil {
		list, err = d.Mappings()
	}
	if err != nil {
		d.abort(cancel, done, m)
		d.emit(Event{Kind: history.KindError, At: d.Clock.Now(), Message: "failed to load mappings", Err: err})
		return fmt.Errorf("load mappings: %w", err)
	}

	src, err := d.Capture.Open(sctx, d.Options)
	if err != nil {
		stopped := sctx.Err() != nil && ctx.Err() == nil
		d.abort(cancel, done, m)
		if stopped {
			log.Println("Dispatch: stopped while opening capture")
			return nil
		}
		d.emit(Event{Kind: history.KindError, At: d.Clock.Now(), Message: "capture unavailable", Err: err})
		return err
	}

	s := &session{
		d:         d,
		mappings:  list,
		lastFired: make(map[float64]time.Time),
		metrics:   m,
	}
	log.Printf("Dispatch: listening for %d mappings", len(list))
	d.emit(Event{Kind: history.KindStarted, At: d.Clock.Now(), Message: fmt.Sprintf("listening for %d mappings", len(list))})

	go s.run(sctx, src, cancel, done)
	return nil
}

// Stop cancels the session, tears capture down and waits for the loop to exit
// Stopping an idle dispatcher is a no-op
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.state != StateListening {
		d.mu.Unlock()
		return
	}
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	cancel()
	<-done
}

// Done returns a channel closed when the current session ends
func (d *Dispatcher) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return d.done
}

func (d *Dispatcher) abort(cancel context.CancelFunc, done chan struct{}, m *sessionMetrics) {
	cancel()
	d.finish(done, m)
}

func (d *Dispatcher) finish(done chan struct{}, m *sessionMetrics) {
	d.mu.Lock()
	if d.done == done {
		d.state = StateIdle
		d.cancel = nil
	}
	d.mu.Unlock()
	m.state.Store(StateIdle.String())
	close(done)
}

func (d *Dispatcher) emit(e Event) {
	if d.OnEvent != nil {
		d.OnEvent(e)
	}
	if d.History != nil {
		d.History.Record(e.Entry())
	}
}

type sessionMetrics struct {
	state      *status.AtomicString
	frames     *atomic.Int64
	gated      *atomic.Int64
	fired      *atomic.Int64
	blocked    *atomic.Int64
	suppressed *atomic.Int64
	dominantHz *status.AtomicFloat
	level      *atomic.Int64
}

func (d *Dispatcher) bindMetrics() *sessionMetrics {
	r := d.Metrics
	if r == nil {
		r = status.NewRegistry()
	}
	return &sessionMetrics{
		state:      r.Strings.Get(MetricState),
		frames:     r.Ints.Get(MetricFrames),
		gated:      r.Ints.Get(MetricGated),
		fired:      r.Ints.Get(MetricFired),
		blocked:    r.Ints.Get(MetricBlocked),
		suppressed: r.Ints.Get(MetricSuppressed),
		dominantHz: r.Floats.Get(MetricDominantHz),
		level:      r.Ints.Get(MetricLevel),
	}
}

// session is one Idle -> Listening -> Idle cycle; only its goroutine touches lastFired
type session struct {
	d         *Dispatcher
	mappings  []mapping.Mapping
	lastFired map[float64]time.Time
	metrics   *sessionMetrics
}

func (s *session) run(ctx context.Context, src capture.FrameSource, cancel context.CancelFunc, done chan struct{}) {
	defer func() {
		cancel()
		src.Close()
		s.d.emit(Event{Kind: history.KindStopped, At: s.d.Clock.Now(), Message: "stopped listening"})
		log.Println("Dispatch: stopped")
		s.d.finish(done, s.metrics)
	}()

	for {
		f, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, capture.ErrClosed) || errors.Is(err, io.EOF) {
				return
			}
			s.d.emit(Event{Kind: history.KindError, At: s.d.Clock.Now(), Message: "capture failed", Err: err})
			log.Printf("Dispatch: capture failed: %v", err)
			return
		}
		s.evaluate(ctx, f)
	}
}

// evaluate classifies one frame and fires at most one mapping
func (s *session) evaluate(ctx context.Context, f capture.Frame) {
	d := s.d
	s.metrics.frames.Add(1)

	binHz := f.BinHz()
	cutoff := int(math.Floor(d.MinHz / binHz))
	idx, level := f.Peak(cutoff)
	dominant := float64(idx) * binHz
	s.metrics.dominantHz.Set(dominant)
	s.metrics.level.Store(int64(level))

	if level <= d.NoiseGate {
		s.metrics.gated.Add(1)
		return
	}

	var hit *mapping.Mapping
	for i := range s.mappings {
		if math.Abs(dominant-s.mappings[i].FrequencyHz) <= d.ToleranceHz {
			hit = &s.mappings[i]
			break
		}
	}
	if hit == nil {
		return
	}

	if last, ok := s.lastFired[hit.FrequencyHz]; ok && f.At.Sub(last) < d.Cooldown {
		s.metrics.suppressed.Add(1)
		return
	}
	s.lastFired[hit.FrequencyHz] = f.At

	ev := Event{
		Kind:        history.KindFired,
		At:          f.At,
		FrequencyHz: hit.FrequencyHz,
		DominantHz:  dominant,
		MappingID:   hit.ID,
		Label:       hit.Label,
	}

	if d.Executor == nil {
		ev.Message = fmt.Sprintf("%s detected", hit.Label)
		s.metrics.fired.Add(1)
		d.emit(ev)
		return
	}

	if err := d.Executor.Execute(ctx, *hit); err != nil {
		ev.Err = err
		if errors.Is(err, ErrActionBlocked) {
			ev.Kind = history.KindBlocked
			ev.Message = fmt.Sprintf("%s: action blocked", hit.Label)
			s.metrics.blocked.Add(1)
		} else {
			ev.Kind = history.KindError
			ev.Message = fmt.Sprintf("%s: %v", hit.Label, err)
		}
		log.Printf("Dispatch: %s", ev.Message)
		d.emit(ev)
		return
	}

	ev.Message = fmt.Sprintf("%s triggered", hit.Label)
	s.metrics.fired.Add(1)
	d.emit(ev)
}
