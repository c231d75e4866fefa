package login

import (
	"context"
	"fmt"

	"github.com/lixenwraith/soundkey/audio"
	"github.com/lixenwraith/soundkey/registry"
)

// Prover plays an account's secret for a nearby verifier
type Prover struct {
	Registry registry.Registry
	Emitter  *audio.Emitter
	Options  audio.EmitOptions
}

// NewProver creates a prover with the default emission profile
func NewProver(reg registry.Registry, e *audio.Emitter) *Prover {
	return &Prover{Registry: reg, Emitter: e, Options: audio.DefaultEmitOptions()}
}

// Prove reads account's secret and emits it
func (p *Prover) Prove(ctx context.Context, account string) error {
	secret, err := p.Registry.SoundHashOf(ctx, account)
	if err != nil {
		return fmt.Errorf("read sound hash: %w", err)
	}
	if secret.IsZero() {
		return ErrNoSecret
	}
	return p.Emitter.Emit(ctx, secret[:], p.Options)
}
