package capture

import (
	"math"
	"time"
)

// Frame is one spectral snapshot, bins byte-scaled 0-255
type Frame struct {
	Bins       []uint8
	SampleRate int
	FFTSize    int
	At         time.Time
}

// BinHz returns the width of one bin
func (f Frame) BinHz() float64 {
	return float64(f.SampleRate) / float64(f.FFTSize)
}

// IndexOf returns the bin nearest hz, clamped to the bin range
func (f Frame) IndexOf(hz float64) int {
	i := int(math.Round(hz / f.BinHz()))
	if i < 0 {
		return 0
	}
	if i >= len(f.Bins) {
		return len(f.Bins) - 1
	}
	return i
}

// Frequency returns the centre of bin i
func (f Frame) Frequency(i int) float64 {
	return float64(i) * f.BinHz()
}

// Peak returns the loudest bin at or above from; earliest wins ties
func (f Frame) Peak(from int) (index int, level uint8) {
	if from < 0 {
		from = 0
	}
	index = from
	for i := from; i < len(f.Bins); i++ {
		if f.Bins[i] > level {
			level = f.Bins[i]
			index = i
		}
	}
	return index, level
}
