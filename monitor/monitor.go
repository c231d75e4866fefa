// Package monitor renders a live terminal view of a listening session
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/soundkey/dispatch"
	"github.com/lixenwraith/soundkey/history"
	"github.com/lixenwraith/soundkey/mapping"
	"github.com/lixenwraith/soundkey/status"
)

const (
	refreshInterval = 100 * time.Millisecond
	levelBarWidth   = 32
	recentEvents    = 8
)

var (
	styleDefault = tcell.StyleDefault
	styleTitle   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleDim     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleFired   = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleBlocked = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleBar     = tcell.StyleDefault.Foreground(tcell.ColorBlue)
	styleGate    = tcell.StyleDefault.Foreground(tcell.ColorPurple)
)

// Monitor draws metrics and recent activity until the user quits
type Monitor struct {
	screen   tcell.Screen
	metrics  *status.Registry
	history  *history.Ring
	Mappings []mapping.Mapping
	// NoiseGate marks the threshold on the level bar
	NoiseGate uint8
}

// New creates a monitor on an initialised screen
func New(screen tcell.Screen, metrics *status.Registry, ring *history.Ring) *Monitor {
	return &Monitor{screen: screen, metrics: metrics, history: ring}
}

// Run redraws on a ticker and returns when q, Esc or Ctrl-C is pressed or ctx ends
// The caller owns the screen and calls Fini afterwards
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	quit := make(chan struct{})
	defer close(quit)

	eventChan := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := m.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case eventChan <- ev:
			case <-quit:
				return
			}
		}
	}()

	m.draw()
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-eventChan:
			if !m.handleInput(ev) {
				return nil
			}

		case <-ticker.C:
			m.draw()
		}
	}
}

// handleInput returns false when the view should close
func (m *Monitor) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q') {
			return false
		}
	case *tcell.EventResize:
		m.screen.Sync()
		m.draw()
	}
	return true
}

func (m *Monitor) draw() {
	s := m.screen
	s.Clear()

	state := m.metrics.Strings.Get(dispatch.MetricState).Load()
	if state == "" {
		state = dispatch.StateIdle.String()
	}
	y := 0
	m.print(0, y, styleTitle, "SoundKey listener")
	m.print(19, y, styleDim, "["+state+"]")
	y += 2

	level := m.metrics.Ints.Get(dispatch.MetricLevel).Load()
	m.print(0, y, styleDefault, fmt.Sprintf("Dominant %8.1f Hz   Level %3d ", m.metrics.Floats.Get(dispatch.MetricDominantHz).Get(), level))
	m.drawBar(36, y, level)
	y++

	m.print(0, y, styleDim, fmt.Sprintf("Frames %d  Gated %d  Fired %d  Blocked %d  Suppressed %d",
		m.metrics.Ints.Get(dispatch.MetricFrames).Load(),
		m.metrics.Ints.Get(dispatch.MetricGated).Load(),
		m.metrics.Ints.Get(dispatch.MetricFired).Load(),
		m.metrics.Ints.Get(dispatch.MetricBlocked).Load(),
		m.metrics.Ints.Get(dispatch.MetricSuppressed).Load(),
	))
	y += 2

	m.print(0, y, styleTitle, "Mappings")
	y++
	for _, mp := range m.Mappings {
		target := mp.Action.URL
		if mp.Action.Type == mapping.ActionPublish {
			target = mp.Action.Topic
		}
		m.print(2, y, styleDefault, fmt.Sprintf("%7.0f Hz  %-12s %-8s %s", mp.FrequencyHz, mp.Label, mp.Action.Type, target))
		y++
	}
	y++

	m.print(0, y, styleTitle, "Recent")
	y++
	if m.history != nil {
		entries := m.history.Entries()
		if len(entries) > recentEvents {
			entries = entries[:recentEvents]
		}
		for _, e := range entries {
			m.print(2, y, eventStyle(e.Kind), fmt.Sprintf("%s %-8s %s", e.At.Format("15:04:05"), e.Kind, e.Message))
			y++
		}
	}

	_, h := s.Size()
	m.print(0, h-1, styleDim, "q / Esc to quit")
	s.Show()
}

// drawBar renders level 0-255 scaled to levelBarWidth with the gate marked
func (m *Monitor) drawBar(x, y int, level int64) {
	filled := int(level) * levelBarWidth / 255
	gate := int(m.NoiseGate) * levelBarWidth / 255
	for i := 0; i < levelBarWidth; i++ {
		r, style := '░', styleDim
		if i < filled {
			r, style = '█', styleBar
		}
		if m.NoiseGate > 0 && i == gate {
			r, style = '|', styleGate
		}
		m.screen.SetContent(x+i, y, r, nil, style)
	}
}

func (m *Monitor) print(x, y int, style tcell.Style, text string) {
	w, h := m.screen.Size()
	if y < 0 || y >= h {
		return
	}
	for _, r := range text {
		if x >= w {
			return
		}
		m.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func eventStyle(k history.Kind) tcell.Style {
	switch k {
	case history.KindFired:
		return styleFired
	case history.KindBlocked, history.KindError:
		return styleBlocked
	default:
		return styleDefault
	}
}
