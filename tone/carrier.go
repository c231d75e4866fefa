// Package tone maps secret nibbles onto audio carriers and matches detected carriers
// against the expected secret
package tone

import (
	"math"

	"github.com/lixenwraith/soundkey/constant"
)

// Nibble is a 4-bit value, 0-15
type Nibble uint8

// CarrierSet holds one frequency per nibble value
type CarrierSet [constant.CarrierCount]float64

// carriers is built once and only handed out by value
var carriers = func() CarrierSet {
	var cs CarrierSet
	for i := range cs {
		cs[i] = constant.CarrierBaseHz + float64(i)*constant.CarrierStepHz
	}
	return cs
}()

// Carriers returns a copy of the carrier set
func Carriers() CarrierSet {
	return carriers
}

// Frequency returns the carrier frequency for nibble n
// Values above 15 are masked to their low nibble
func Frequency(n Nibble) float64 {
	return carriers[n&0x0f]
}

// NearestNibble returns the carrier index closest to hz
// Out-of-band frequencies clamp to the first or last carrier
func NearestNibble(hz float64) Nibble {
	idx := math.Round((hz - constant.CarrierBaseHz) / constant.CarrierStepHz)
	if idx < 0 {
		idx = 0
	}
	if idx > constant.CarrierCount-1 {
		idx = constant.CarrierCount - 1
	}
	return Nibble(idx)
}
