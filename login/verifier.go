// Package login proves and verifies account possession by sound
package login

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/lixenwraith/soundkey/capture"
	"github.com/lixenwraith/soundkey/clock"
	"github.com/lixenwraith/soundkey/constant"
	"github.com/lixenwraith/soundkey/registry"
	"github.com/lixenwraith/soundkey/tone"
)

var (
	ErrNoSecret = errors.New("no sound secret set for account")
	ErrMismatch = errors.New("sound did not match")
)

// Session is the outcome of a successful verification
// Callers decide how long to honour it
type Session struct {
	Account    string
	VerifiedAt time.Time
	Matches    int
	Bypass     bool
}

// Result describes one verification attempt
type Result struct {
	Verified bool
	Session  Session
	Expected [constant.LoginToneCount]tone.Nibble
	Detected [constant.LoginToneCount]tone.Nibble
	Matches  int
	Frames   int
}

// Verifier listens for an account's tone sequence and matches it against the registry
type Verifier struct {
	Registry registry.Registry
	Capture  capture.Opener
	Clock    clock.Clock
	Options  capture.Options

	// Tolerance is the carrier distance still counted as a match
	Tolerance int
	// Bypass accepts without listening, for development
	Bypass bool
}

// NewVerifier creates a verifier with the login capture profile
func NewVerifier(reg registry.Registry, capt capture.Opener) *Verifier {
	return &Verifier{
		Registry:  reg,
		Capture:   capt,
		Clock:     clock.New(),
		Options:   capture.LoginOptions(),
		Tolerance: constant.LoginNibbleTolerance,
	}
}

// Verify runs one capture window and decides whether account's sound was heard
// The secret is read fresh on every call
func (v *Verifier) Verify(ctx context.Context, account string) (Result, error) {
	clk := v.Clock
	if clk == nil {
		clk = clock.New()
	}

	if v.Bypass {
		log.Printf("Login: sound bypass enabled, accepting %s", account)
		return Result{
			Verified: true,
			Session:  Session{Account: account, VerifiedAt: clk.Now(), Bypass: true},
		}, nil
	}

	secret, err := v.Registry.SoundHashOf(ctx, account)
	if err != nil {
		return Result{}, fmt.Errorf("read sound hash: %w", err)
	}
	if secret.IsZero() {
		return Result{}, ErrNoSecret
	}

	fs, err := v.Capture.Open(ctx, v.Options)
	if err != nil {
		return Result{}, err
	}
	defer fs.Close()

	var acc accumulator
	for {
		f, err := fs.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, err
		}
		acc.add(f)
	}
	fs.Close()

	top := topCarriers(acc.carrierPower(constant.LoginBinRadius))
	detected := tone.UnpackDetected(tone.PackDetected(top))
	expected := tone.ExpectedNibbles(secret[:])
	m := tone.Match(expected[:], detected[:], v.Tolerance)

	res := Result{
		Verified: m.Accepted,
		Expected: expected,
		Detected: detected,
		Matches:  m.Matches,
		Frames:   acc.frames,
	}
	if !m.Accepted {
		log.Printf("Login: mismatch for %s, expected %v detected %v (%d matches)", account, expected, detected, m.Matches)
		return res, ErrMismatch
	}

	res.Session = Session{Account: account, VerifiedAt: clk.Now(), Matches: m.Matches}
	log.Printf("Login: verified %s (%d matches)", account, m.Matches)
	return res, nil
}
