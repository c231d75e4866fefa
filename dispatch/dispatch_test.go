package dispatch

import (
	"context"
	"errors"
	"math"
	"os"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/lixenwraith/soundkey/capture"
	"github.com/lixenwraith/soundkey/clock"
	"github.com/lixenwraith/soundkey/history"
	"github.com/lixenwraith/soundkey/mapping"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type recordingExecutor struct {
	mu   sync.Mutex
	ran  []string
	fail error
}

func (r *recordingExecutor) Execute(ctx context.Context, m mapping.Mapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, m.ID)
	return r.fail
}

func (r *recordingExecutor) Ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) kinds() []history.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]history.Kind, len(l.events))
	for i, e := range l.events {
		out[i] = e.Kind
	}
	return out
}

func (l *eventLog) count(k history.Kind) int {
	n := 0
	for _, got := range l.kinds() {
		if got == k {
			n++
		}
	}
	return n
}

func mp(id string, hz float64) mapping.Mapping {
	return mapping.Mapping{ID: id, FrequencyHz: hz, Label: id, Action: mapping.Action{Type: mapping.ActionNoop}}
}

// frameWith builds a 4096-point frame at 48 kHz with one loud bin
func frameWith(bin int, level uint8, at time.Time) capture.Frame {
	f := capture.Frame{Bins: make([]uint8, 2048), SampleRate: 48000, FFTSize: 4096, At: at}
	if bin >= 0 {
		f.Bins[bin] = level
	}
	return f
}

func newSession(exec Executor, list ...mapping.Mapping) (*session, *eventLog) {
	d := NewDispatcher(nil, nil, exec)
	log := &eventLog{}
	d.OnEvent = log.add
	return &session{d: d, mappings: list, lastFired: make(map[float64]time.Time), metrics: d.bindMetrics()}, log
}

// TestEvaluateClassification covers the cutoff, the gate and the tolerance band
func TestEvaluateClassification(t *testing.T) {
	tests := []struct {
		name  string
		bin   int
		level uint8
		fires bool
	}{
		{"hum below cutoff", 5, 255, false},
		{"at gate", 85, 140, false},
		{"above gate", 85, 141, true},
		{"edge of band", 93, 200, true},  // 1089.8 Hz
		{"outside band", 94, 200, false}, // 1101.6 Hz
		{"silence", -1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &recordingExecutor{}
			s, _ := newSession(exec, mp("a", 1000))
			s.evaluate(context.Background(), frameWith(tt.bin, tt.level, epoch))

			fired := len(exec.Ran()) == 1
			if fired != tt.fires {
				t.Errorf("Expected fires=%v, got %v", tt.fires, fired)
			}
		})
	}
}

// TestEvaluateFirstMatchWins verifies insertion order decides overlapping bands
func TestEvaluateFirstMatchWins(t *testing.T) {
	exec := &recordingExecutor{}
	s, _ := newSession(exec, mp("a", 1000), mp("b", 1050))
	s.evaluate(context.Background(), frameWith(88, 200, epoch)) // 1031.25 Hz

	if ran := exec.Ran(); len(ran) != 1 || ran[0] != "a" {
		t.Errorf("Expected [a], got %v", ran)
	}
}

// TestEvaluateCooldown verifies the per-frequency debounce window
func TestEvaluateCooldown(t *testing.T) {
	exec := &recordingExecutor{}
	s, events := newSession(exec, mp("a", 1000), mp("b", 2000))
	ctx := context.Background()

	s.evaluate(ctx, frameWith(85, 200, epoch))
	s.evaluate(ctx, frameWith(85, 200, epoch.Add(2999*time.Millisecond)))
	s.evaluate(ctx, frameWith(171, 200, epoch.Add(2999*time.Millisecond))) // other frequency unaffected
	s.evaluate(ctx, frameWith(85, 200, epoch.Add(3000*time.Millisecond)))

	ran := exec.Ran()
	want := []string{"a", "b", "a"}
	if len(ran) != len(want) {
		t.Fatalf("Expected %v, got %v", want, ran)
	}
	for i := range want {
		if ran[i] != want[i] {
			t.Errorf("Fire %d: expected %s, got %s", i, want[i], ran[i])
		}
	}
	if got := s.metrics.suppressed.Load(); got != 1 {
		t.Errorf("Expected 1 suppressed, got %d", got)
	}
	if got := events.count(history.KindFired); got != 3 {
		t.Errorf("Expected 3 fired events, got %d", got)
	}
}

// TestEvaluateBlockedNotRetried verifies a blocked action is reported once and still debounced
func TestEvaluateBlockedNotRetried(t *testing.T) {
	exec := &recordingExecutor{fail: ErrActionBlocked}
	s, events := newSession(exec, mp("a", 1000))
	ctx := context.Background()

	s.evaluate(ctx, frameWith(85, 200, epoch))
	s.evaluate(ctx, frameWith(85, 200, epoch.Add(time.Second)))

	if len(exec.Ran()) != 1 {
		t.Errorf("Expected one attempt, got %d", len(exec.Ran()))
	}
	if events.count(history.KindBlocked) != 1 {
		t.Errorf("Expected one blocked event, got %v", events.kinds())
	}
	if s.metrics.blocked.Load() != 1 || s.metrics.fired.Load() != 0 {
		t.Errorf("Unexpected metrics blocked=%d fired=%d", s.metrics.blocked.Load(), s.metrics.fired.Load())
	}
}

type fakePublisher struct {
	topic   string
	payload string
	err     error
}

func (f *fakePublisher) Enqueue(topic string, payload []byte) error {
	f.topic, f.payload = topic, string(payload)
	return f.err
}

// TestActionExecutor covers each action variant
func TestActionExecutor(t *testing.T) {
	var opened string
	pub := &fakePublisher{}
	e := &ActionExecutor{
		OpenURL:   func(u string) error { opened = u; return nil },
		Publisher: pub,
	}
	ctx := context.Background()

	m := mapping.Mapping{ID: "1", Label: "Docs", Action: mapping.OpenURL("https://example.org")}
	if err := e.Execute(ctx, m); err != nil || opened != "https://example.org" {
		t.Errorf("openUrl: err=%v opened=%q", err, opened)
	}

	m.Action = mapping.Action{Type: mapping.ActionNoop}
	if err := e.Execute(ctx, m); err != nil {
		t.Errorf("noop: %v", err)
	}

	m.Action = mapping.Publish("home/door", "")
	if err := e.Execute(ctx, m); err != nil || pub.topic != "home/door" || pub.payload != "Docs" {
		t.Errorf("publish: err=%v topic=%q payload=%q", err, pub.topic, pub.payload)
	}

	e.OpenURL = func(string) error { return errors.New("popup blocked") }
	m.Action = mapping.OpenURL("https://example.org")
	if err := e.Execute(ctx, m); !errors.Is(err, ErrActionBlocked) {
		t.Errorf("Expected ErrActionBlocked, got %v", err)
	}

	e.Publisher = nil
	m.Action = mapping.Publish("home/door", "x")
	if err := e.Execute(ctx, m); !errors.Is(err, ErrActionBlocked) {
		t.Errorf("Expected ErrActionBlocked without broker, got %v", err)
	}
}

func sine(hz, amp float64, rate int, d time.Duration) []float32 {
	n := int(d.Seconds() * float64(rate))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*hz*float64(i)/float64(rate)))
	}
	return out
}

func newLiveDispatcher(src *capture.MemorySource, list ...mapping.Mapping) (*Dispatcher, *clock.Manual, *recordingExecutor, *eventLog) {
	m := clock.NewManual(epoch)
	capt := &capture.Capturer{Source: src, Clock: m}
	exec := &recordingExecutor{}
	d := NewDispatcher(capt, func() ([]mapping.Mapping, error) { return list, nil }, exec)
	d.Clock = m
	events := &eventLog{}
	d.OnEvent = events.add
	d.History = history.NewRing(10)
	return d, m, exec, events
}

// TestListenFiresWithCooldown runs four seconds of a looping 1 kHz tone through real capture
func TestListenFiresWithCooldown(t *testing.T) {
	src := capture.NewMemorySource(sine(1000, 0.3, 48000, time.Second), 48000)
	src.Loop = true
	d, m, exec, events := newLiveDispatcher(src, mp("a", 1000))

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	frames := d.Metrics.Ints.Get(MetricFrames)
	for frames.Load() < 240 {
		if m.Tickers() > 0 && m.Pending() == 0 {
			m.Advance(d.Options.Interval)
		}
		runtime.Gosched()
	}
	d.Stop()

	if ran := exec.Ran(); len(ran) != 2 {
		t.Errorf("Expected 2 fires in four seconds, got %d", len(ran))
	}
	if d.State() != StateIdle {
		t.Errorf("Expected idle after Stop, got %s", d.State())
	}
	if src.Live() != 0 {
		t.Errorf("Expected capture released, %d inputs live", src.Live())
	}
	kinds := events.kinds()
	if kinds[0] != history.KindStarted || kinds[len(kinds)-1] != history.KindStopped {
		t.Errorf("Expected started...stopped, got %v", kinds)
	}
	if hz := d.Metrics.Floats.Get(MetricDominantHz).Get(); math.Abs(hz-1000) > 100 {
		t.Errorf("Expected dominant near 1000 Hz, got %f", hz)
	}
}

// TestStartWhileListening verifies reentry is rejected and restart works
func TestStartWhileListening(t *testing.T) {
	src := capture.NewMemorySource(nil, 48000)
	d, _, _, _ := newLiveDispatcher(src)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.Start(context.Background()); !errors.Is(err, ErrAlreadyListening) {
		t.Errorf("Expected ErrAlreadyListening, got %v", err)
	}
	d.Stop()
	d.Stop()

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	d.Stop()
	if src.Live() != 0 {
		t.Errorf("Expected nothing live, got %d", src.Live())
	}
}

// TestStopDuringPendingOpen verifies a stop while the device opens leaves nothing open
func TestStopDuringPendingOpen(t *testing.T) {
	src := capture.NewMemorySource(nil, 48000)
	src.Gate = make(chan struct{})
	d, _, _, events := newLiveDispatcher(src)

	result := make(chan error, 1)
	go func() { result <- d.Start(context.Background()) }()

	for len(src.Calls()) == 0 {
		runtime.Gosched()
	}
	d.Stop()

	if err := <-result; err != nil {
		t.Errorf("Expected nil from interrupted Start, got %v", err)
	}
	if d.State() != StateIdle || src.Live() != 0 {
		t.Errorf("Expected idle with nothing live, got %s and %d", d.State(), src.Live())
	}
	if events.count(history.KindError) != 0 {
		t.Errorf("Expected no error events, got %v", events.kinds())
	}
}

// TestStartBlocked verifies permission failures surface typed and leave the dispatcher idle
func TestStartBlocked(t *testing.T) {
	src := capture.NewMemorySource(nil, 48000)
	src.OpenErr = os.ErrPermission
	d, _, _, events := newLiveDispatcher(src)

	if err := d.Start(context.Background()); !errors.Is(err, capture.ErrBlocked) {
		t.Errorf("Expected ErrBlocked, got %v", err)
	}
	if d.State() != StateIdle {
		t.Errorf("Expected idle, got %s", d.State())
	}
	if events.count(history.KindError) != 1 {
		t.Errorf("Expected one error event, got %v", events.kinds())
	}
}
