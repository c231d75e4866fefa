// Package registry reads per-account sound secrets
package registry

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/lixenwraith/soundkey/tone"
)

var (
	ErrInvalidAccount = errors.New("invalid account address")
	ErrRPC            = errors.New("registry rpc failed")
)

// Registry maps an account to its current sound secret
// A zero Secret means none is configured
type Registry interface {
	SoundHashOf(ctx context.Context, account string) (tone.Secret, error)
}

// Address is a 20-byte account address
type Address [20]byte

// ParseAddress accepts 40 hex digits with optional 0x prefix
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(s) != 40 {
		return a, fmt.Errorf("%w: %q", ErrInvalidAccount, s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}
	copy(a[:], b)
	return a, nil
}

// Hex returns the lowercase 0x form
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Keccak256 hashes data with the pre-standard Keccak padding
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Selector returns the 4-byte ABI function selector for sig
func Selector(sig string) [4]byte {
	var s [4]byte
	copy(s[:], Keccak256([]byte(sig)))
	return s
}

// StaticRegistry serves secrets from memory
type StaticRegistry struct {
	mu      sync.RWMutex
	secrets map[Address]tone.Secret
}

// NewStaticRegistry creates an empty registry
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{secrets: make(map[Address]tone.Secret)}
}

// Set assigns account's secret
func (r *StaticRegistry) Set(account string, secret tone.Secret) error {
	addr, err := ParseAddress(account)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.secrets[addr] = secret
	r.mu.Unlock()
	return nil
}

func (r *StaticRegistry) SoundHashOf(ctx context.Context, account string) (tone.Secret, error) {
	addr, err := ParseAddress(account)
	if err != nil {
		return tone.Secret{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.secrets[addr], nil
}
