// Package clock provides the time and periodic-tick ports used by capture and dispatch
package clock

import "time"

// Clock supplies the current time and periodic tickers
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks at a fixed cadence
// Slow receivers miss ticks rather than queueing them
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real is the wall clock
type Real struct{}

// New returns the wall clock
func New() Real {
	return Real{}
}

// Now returns the current time with monotonic reading
func (Real) Now() time.Time {
	return time.Now()
}

// NewTicker wraps time.NewTicker
func (Real) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time {
	return r.t.C
}

func (r *realTicker) Stop() {
	r.t.Stop()
}
