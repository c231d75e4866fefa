// Package attest gates sensitive edits behind a short-lived hardware signer attestation
package attest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lixenwraith/soundkey/clock"
	"github.com/lixenwraith/soundkey/constant"
	"github.com/lixenwraith/soundkey/kv"
)

// Storage keys
const (
	NonceKey       = "ledger-session-nonce"
	AttestationKey = "ledger-session-attestation"
)

// Attestation proves the device holding PublicKey signed the session nonce
type Attestation struct {
	PublicKey string `json:"pubkey"`
	Signature string `json:"signature"`
	IssuedAt  int64  `json:"issuedAt"`  // unix ms
	ExpiresAt int64  `json:"expiresAt"` // unix ms
}

// Valid reports whether the attestation is unexpired at now
func (a Attestation) Valid(now time.Time) bool {
	return a.PublicKey != "" && now.UnixMilli() < a.ExpiresAt
}

// Manager obtains, persists and checks attestations
type Manager struct {
	signer   Signer
	store    kv.Store
	clock    clock.Clock
	validity time.Duration

	mu sync.Mutex
}

// NewManager creates a manager; signer may be nil when no device is configured
func NewManager(signer Signer, store kv.Store, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	return &Manager{
		signer:   signer,
		store:    store,
		clock:    clk,
		validity: constant.AttestationValidity,
	}
}

// Ensure returns the current attestation or obtains a new one from the signer
func (m *Manager) Ensure(ctx context.Context) (Attestation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if att, ok := m.current(); ok {
		return att, nil
	}
	if !m.DeviceConnected() {
		return Attestation{}, ErrNoSigner
	}

	nonce, err := m.nonce()
	if err != nil {
		return Attestation{}, err
	}

	pub, err := m.signer.GetAttestedPublicKey(ctx)
	if err != nil {
		return Attestation{}, fmt.Errorf("get public key: %w", err)
	}
	sig, err := m.signer.SignNonce(ctx, nonce)
	if err != nil {
		return Attestation{}, fmt.Errorf("sign nonce: %w", err)
	}
	if err := VerifySignature(nonce, sig, pub); err != nil {
		return Attestation{}, err
	}

	now := m.clock.Now()
	att := Attestation{
		PublicKey: pub,
		Signature: sig,
		IssuedAt:  now.UnixMilli(),
		ExpiresAt: now.Add(m.validity).UnixMilli(),
	}
	raw, err := json.Marshal(att)
	if err != nil {
		return Attestation{}, err
	}
	if err := m.store.Set(AttestationKey, raw); err != nil {
		return Attestation{}, fmt.Errorf("store attestation: %w", err)
	}

	log.Printf("Attest: session attested until %s", time.UnixMilli(att.ExpiresAt).Format(time.RFC3339))
	return att, nil
}

// Current returns the stored attestation if still valid
func (m *Manager) Current() (Attestation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current()
}

func (m *Manager) current() (Attestation, bool) {
	raw, ok, err := m.store.Get(AttestationKey)
	if err != nil || !ok {
		return Attestation{}, false
	}
	var att Attestation
	if err := json.Unmarshal(raw, &att); err != nil {
		return Attestation{}, false
	}
	if !att.Valid(m.clock.Now()) {
		return Attestation{}, false
	}
	return att, true
}

// Clear forgets the attestation and its nonce
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Delete(NonceKey); err != nil {
		log.Printf("Attest: clear nonce: %v", err)
	}
	if err := m.store.Delete(AttestationKey); err != nil {
		log.Printf("Attest: clear attestation: %v", err)
	}
}

// HasValidAttestation is checked on every gated operation
func (m *Manager) HasValidAttestation() bool {
	_, ok := m.Current()
	return ok
}

// AttestedPrincipalID returns the attested public key, lowercase, or ""
func (m *Manager) AttestedPrincipalID() string {
	att, ok := m.Current()
	if !ok {
		return ""
	}
	return strings.ToLower(att.PublicKey)
}

// DeviceConnected reports whether the signer is present
func (m *Manager) DeviceConnected() bool {
	return m.signer != nil && m.signer.Connected()
}

// nonce reuses the stored session nonce or creates one
func (m *Manager) nonce() (string, error) {
	if raw, ok, err := m.store.Get(NonceKey); err == nil && ok {
		var s string
		if json.Unmarshal(raw, &s) == nil && isNonce(s) {
			return s, nil
		}
	}

	buf := make([]byte, constant.AttestationNonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	nonce := "0x" + hex.EncodeToString(buf)

	raw, _ := json.Marshal(nonce)
	if err := m.store.Set(NonceKey, raw); err != nil {
		return "", fmt.Errorf("store nonce: %w", err)
	}
	return nonce, nil
}

func isNonce(s string) bool {
	b, err := decodeHex(s)
	return err == nil && len(b) > 0
}
