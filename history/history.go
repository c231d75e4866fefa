// Package history records listening activity
package history

import (
	"sync"
	"time"
)

// Kind classifies an activity entry
type Kind string

const (
	KindStarted Kind = "started"
	KindFired   Kind = "fired"
	KindBlocked Kind = "blocked"
	KindError   Kind = "error"
	KindStopped Kind = "stopped"
	KindPlayed  Kind = "played"
)

// Entry is one line of the activity log
type Entry struct {
	At          time.Time `json:"at"`
	Kind        Kind      `json:"kind"`
	Message     string    `json:"message"`
	FrequencyHz float64   `json:"frequencyHz,omitempty"`
	DominantHz  float64   `json:"dominantHz,omitempty"`
	MappingID   string    `json:"mappingId,omitempty"`
	Label       string    `json:"label,omitempty"`
}

// Recorder accepts activity entries; Record must not block
type Recorder interface {
	Record(e Entry)
}

// Multi fans an entry out to several recorders
type Multi []Recorder

func (m Multi) Record(e Entry) {
	for _, r := range m {
		if r != nil {
			r.Record(e)
		}
	}
}

// Ring keeps the most recent entries in memory
type Ring struct {
	mu      sync.RWMutex
	entries []Entry // oldest first
	cap     int
}

// NewRing creates a log holding at most capacity entries
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{cap: capacity, entries: make([]Entry, 0, capacity)}
}

func (r *Ring) Record(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == r.cap {
		copy(r.entries, r.entries[1:])
		r.entries = r.entries[:r.cap-1]
	}
	r.entries = append(r.entries, e)
}

// Entries returns a copy, newest first
func (r *Ring) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		out[len(out)-1-i] = e
	}
	return out
}

// Len returns the number of held entries
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear empties the log
func (r *Ring) Clear() {
	r.mu.Lock()
	r.entries = r.entries[:0]
	r.mu.Unlock()
}
