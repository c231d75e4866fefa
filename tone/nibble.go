package tone

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/lixenwraith/soundkey/constant"
)

// Secret is the 32-byte value stored per account in the registry
// The zero value means no secret is configured
type Secret [32]byte

// ErrInvalidSecret is returned when a hex secret cannot be decoded
var ErrInvalidSecret = errors.New("invalid secret")

// ParseSecret decodes a 0x-prefixed or bare hex string of up to 32 bytes
// Shorter values are left-aligned, matching how the first bytes carry the nibbles
func ParseSecret(s string) (Secret, error) {
	var sec Secret
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(s)%2 != 0 {
		return sec, fmt.Errorf("%w: odd hex length", ErrInvalidSecret)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return sec, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	if len(b) > len(sec) {
		return sec, fmt.Errorf("%w: %d bytes", ErrInvalidSecret, len(b))
	}
	copy(sec[:], b)
	return sec, nil
}

// IsZero reports whether the secret is the all-zero sentinel
func (s Secret) IsZero() bool {
	return s == Secret{}
}

// Hex returns the 0x-prefixed hex form
func (s Secret) Hex() string {
	return "0x" + hex.EncodeToString(s[:])
}

// ExpectedNibbles extracts the low nibble of each of the first four bytes
// One nibble per byte; this differs from the packed layout used for detection
func ExpectedNibbles(b []byte) [constant.LoginToneCount]Nibble {
	var out [constant.LoginToneCount]Nibble
	for i := 0; i < len(out) && i < len(b); i++ {
		out[i] = Nibble(b[i] & 0x0f)
	}
	return out
}

// PackDetected packs four carrier indices into two bytes
// n0|n1 go into byte 0 high/low, n2|n3 into byte 1 high/low
func PackDetected(n [constant.LoginToneCount]Nibble) [2]byte {
	var out [2]byte
	for i, v := range n {
		v &= 0x0f
		if i < 2 {
			out[0] |= byte(v) << ((1 - i) * 4)
		} else {
			out[1] |= byte(v) << ((3 - i) * 4)
		}
	}
	return out
}

// UnpackDetected reverses PackDetected
func UnpackDetected(b [2]byte) [constant.LoginToneCount]Nibble {
	return [constant.LoginToneCount]Nibble{
		Nibble((b[0] >> 4) & 0x0f),
		Nibble(b[0] & 0x0f),
		Nibble((b[1] >> 4) & 0x0f),
		Nibble(b[1] & 0x0f),
	}
}
