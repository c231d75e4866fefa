package attest

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/lixenwraith/soundkey/constant"
)

// Signer is the hardware attestation device port
// Keys and signatures are derived at constant.AttestationPath
type Signer interface {
	Connected() bool
	GetAttestedPublicKey(ctx context.Context) (string, error)
	SignNonce(ctx context.Context, nonceHex string) (string, error)
}

// SoftSigner holds a secp256k1 key in memory
// Stands in for a hardware device in development and tests
type SoftSigner struct {
	key       *secp256k1.PrivateKey
	connected atomic.Bool
}

// NewSoftSigner loads a hex private key
func NewSoftSigner(keyHex string) (*SoftSigner, error) {
	raw, err := decodeHex(keyHex)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("soft signer: key must be 32 hex bytes")
	}
	s := &SoftSigner{key: secp256k1.PrivKeyFromBytes(raw)}
	s.connected.Store(true)
	return s, nil
}

// GenerateSoftSigner creates a signer with a fresh random key
func GenerateSoftSigner() (*SoftSigner, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	s := &SoftSigner{key: key}
	s.connected.Store(true)
	return s, nil
}

// SetConnected simulates plugging or unplugging the device
func (s *SoftSigner) SetConnected(v bool) {
	s.connected.Store(v)
}

// Path returns the fixed derivation path
func (s *SoftSigner) Path() string {
	return constant.AttestationPath
}

func (s *SoftSigner) Connected() bool {
	return s.connected.Load()
}

func (s *SoftSigner) GetAttestedPublicKey(ctx context.Context) (string, error) {
	if !s.Connected() {
		return "", ErrNoSigner
	}
	return "0x" + hex.EncodeToString(s.key.PubKey().SerializeUncompressed()), nil
}

// SignNonce personal-signs the attestation message, returning r||s||v with v in {27,28}
func (s *SoftSigner) SignNonce(ctx context.Context, nonceHex string) (string, error) {
	if !s.Connected() {
		return "", ErrNoSigner
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	compact := ecdsa.SignCompact(s.key, MessageHash(FormatMessage(nonceHex)), false)
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return "0x" + hex.EncodeToString(sig), nil
}
