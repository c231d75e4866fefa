package capture

import "sync"

// ring keeps the most recent samples pushed by an input backend
type ring struct {
	mu    sync.Mutex
	buf   []float32
	pos   int
	count int
}

func newRing(size int) *ring {
	return &ring{buf: make([]float32, size)}
}

// write appends samples, overwriting the oldest
func (r *ring) write(p []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Only the tail can survive
	if len(p) > len(r.buf) {
		p = p[len(p)-len(r.buf):]
	}
	for _, v := range p {
		r.buf[r.pos] = v
		r.pos = (r.pos + 1) % len(r.buf)
	}
	r.count += len(p)
	if r.count > len(r.buf) {
		r.count = len(r.buf)
	}
}

// snapshot copies the latest len(dst) samples oldest first, zero-padding the front
func (r *ring) snapshot(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.count
	if n > len(dst) {
		n = len(dst)
	}
	pad := len(dst) - n
	for i := 0; i < pad; i++ {
		dst[i] = 0
	}
	start := (r.pos - n + len(r.buf)) % len(r.buf)
	for i := pad; i < len(dst); i++ {
		dst[i] = r.buf[start]
		start = (start + 1) % len(r.buf)
	}
}
