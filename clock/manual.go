package clock

import (
	"sync"
	"time"
)

// Manual is a controllable clock for tests
// Tickers fire only when Advance crosses their deadline
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

// NewManual creates a manual clock starting at start
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current mocked time
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t without firing tickers
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward and fires due tickers
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	live := m.tickers[:0]
	for _, t := range m.tickers {
		if t.stopped {
			continue
		}
		live = append(live, t)
		if !now.Before(t.next) {
			select {
			case t.ch <- now:
			default:
			}
			for !now.Before(t.next) {
				t.next = t.next.Add(t.period)
			}
		}
	}
	m.tickers = live
	m.mu.Unlock()
}

// Tickers returns the number of live tickers
func (m *Manual) Tickers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Pending returns the number of live tickers holding an unreceived tick
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tickers {
		if !t.stopped && len(t.ch) > 0 {
			n++
		}
	}
	return n
}

// NewTicker registers a ticker driven by Advance
func (m *Manual) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker period")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTicker{
		clock:  m,
		ch:     make(chan time.Time, 1),
		period: d,
		next:   m.now.Add(d),
	}
	m.tickers = append(m.tickers, t)
	return t
}

type manualTicker struct {
	clock   *Manual
	ch      chan time.Time
	period  time.Duration
	next    time.Time
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time {
	return t.ch
}

func (t *manualTicker) Stop() {
	t.clock.mu.Lock()
	t.stopped = true
	t.clock.mu.Unlock()
}
