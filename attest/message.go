package attest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

var (
	ErrNoSigner  = errors.New("no hardware signer connected")
	ErrSignature = errors.New("signature does not match reported public key")
	ErrPublicKey = errors.New("unsupported public key")
)

const messageTitle = "SoundKey session attestation"

// FormatMessage returns the text the signer signs for nonceHex
func FormatMessage(nonceHex string) string {
	return messageTitle + "\nNonce: " + with0x(nonceHex)
}

// MessageHash is the EIP-191 personal message hash
func MessageHash(message string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("\x19Ethereum Signed Message:\n" + strconv.Itoa(len(message)) + message))
	return h.Sum(nil)
}

// RecoverPublicKey recovers the signer of hash from a 65-byte r||s||v signature
func RecoverPublicKey(hash []byte, sigHex string) (*secp256k1.PublicKey, error) {
	sig, err := decodeHex(sigHex)
	if err != nil || len(sig) != 65 {
		return nil, fmt.Errorf("%w: malformed signature", ErrSignature)
	}

	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return nil, fmt.Errorf("%w: recovery id %d", ErrSignature, sig[64])
	}

	// Compact form puts the recovery code first
	compact := make([]byte, 65)
	compact[0] = 27 + v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignature, err)
	}
	return pub, nil
}

// ParsePublicKey accepts compressed or uncompressed hex keys
func ParsePublicKey(pubHex string) (*secp256k1.PublicKey, error) {
	raw, err := decodeHex(pubHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPublicKey, err)
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPublicKey, err)
	}
	return pub, nil
}

// Address returns the 0x account address of pub
func Address(pub *secp256k1.PublicKey) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub.SerializeUncompressed()[1:])
	return "0x" + hex.EncodeToString(h.Sum(nil)[12:])
}

// VerifySignature checks sigHex over nonceHex's message was made by pubHex
// Falls back to comparing addresses when key encodings differ
func VerifySignature(nonceHex, sigHex, pubHex string) error {
	recovered, err := RecoverPublicKey(MessageHash(FormatMessage(nonceHex)), sigHex)
	if err != nil {
		return err
	}

	recoveredHex := "0x" + hex.EncodeToString(recovered.SerializeUncompressed())
	if strings.EqualFold(recoveredHex, with0x(pubHex)) {
		return nil
	}

	reported, err := ParsePublicKey(pubHex)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignature, err)
	}
	if Address(recovered) != Address(reported) {
		return ErrSignature
	}
	return nil
}

func with0x(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}
