package status

import (
	"strings"
	"sync"
	"testing"
)

// TestMetricMapCachesPointer verifies Get returns the same pointer per key
func TestMetricMapCachesPointer(t *testing.T) {
	r := NewRegistry()
	a := r.Ints.Get("dispatch.frames")
	b := r.Ints.Get("dispatch.frames")
	if a != b {
		t.Error("Expected cached pointer on second Get")
	}
	if !r.Ints.Has("dispatch.frames") || r.Ints.Has("missing") {
		t.Error("Has reported wrong membership")
	}
}

// TestConcurrentAdd verifies AtomicFloat.Add under contention
func TestConcurrentAdd(t *testing.T) {
	var f AtomicFloat
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				f.Add(0.5)
			}
		}()
	}
	wg.Wait()
	if got := f.Get(); got != 4000 {
		t.Errorf("Expected 4000, got %f", got)
	}
}

// TestAtomicFloatMax verifies Max only raises
func TestAtomicFloatMax(t *testing.T) {
	var f AtomicFloat
	f.Max(3)
	f.Max(1)
	if f.Get() != 3 {
		t.Errorf("Expected 3, got %f", f.Get())
	}
}

// TestAtomicStringTruncates verifies the length cap
func TestAtomicStringTruncates(t *testing.T) {
	var s AtomicString
	if s.Load() != "" {
		t.Error("Expected empty zero value")
	}
	s.Store(strings.Repeat("x", MaxStringLen+10))
	if len(s.Load()) != MaxStringLen {
		t.Errorf("Expected length %d, got %d", MaxStringLen, len(s.Load()))
	}
}

// TestSnapshot verifies all metric kinds appear
func TestSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Bools.Get("listening").Store(true)
	r.Ints.Get("fired").Store(2)
	r.Floats.Get("dominant_hz").Set(1000)
	r.Strings.Get("state").Store("listening")

	snap := r.Snapshot()
	if len(snap) != 4 || r.TotalCount() != 4 {
		t.Fatalf("Expected 4 metrics, got %d", len(snap))
	}
	if snap["fired"] != int64(2) || snap["listening"] != true || snap["dominant_hz"] != 1000.0 || snap["state"] != "listening" {
		t.Errorf("Unexpected snapshot %v", snap)
	}
}
