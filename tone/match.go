package tone

import "github.com/lixenwraith/soundkey/constant"

// MinMatches is the acceptance threshold out of four expected nibbles
const MinMatches = constant.LoginMinMatches

// MatchResult describes an approximate comparison
type MatchResult struct {
	Matches  int
	Accepted bool
}

// Match compares expected and detected nibbles, ignoring order
// Each expected nibble consumes the first unused detected nibble within
// tolerance; accepted when at least MinMatches nibbles pair up
func Match(expected, detected []Nibble, tolerance int) MatchResult {
	used := make([]bool, len(detected))
	matches := 0

	for _, exp := range expected {
		for i, d := range detected {
			if used[i] {
				continue
			}
			diff := int(d) - int(exp)
			if diff < 0 {
				diff = -diff
			}
			if diff <= tolerance {
				used[i] = true
				matches++
				break
			}
		}
	}

	return MatchResult{
		Matches:  matches,
		Accepted: matches >= MinMatches,
	}
}
