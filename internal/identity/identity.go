// Package identity holds the owner keys of a store: an ed25519 key that
// signs envelopes and an X25519 key used to encrypt record content.
//
// Both keys derive from one 32-byte secret seed. The public identity string
// is hex(ed25519 public key || X25519 public key), 128 hex characters.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/curve25519"

	"github.com/roach88/relaykv/internal/envelope"
)

// SeedSize is the length of the secret seed in bytes.
const SeedSize = ed25519.SeedSize

// ErrInvalidSecret is returned when a secret cannot be parsed into keys.
var ErrInvalidSecret = errors.New("invalid secret key")

// Keys is an owner identity. It is immutable and safe for concurrent use.
type Keys struct {
	seed    []byte
	signing ed25519.PrivateKey
	xPriv   []byte
	xPub    []byte
	pubkey  string
}

// Generate creates a fresh identity from crypto/rand.
func Generate() (*Keys, error) {
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}
	return FromSeed(seed)
}

// FromSeed derives an identity from a 32-byte seed.
func FromSeed(seed []byte) (*Keys, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes, got %d", ErrInvalidSecret, SeedSize, len(seed))
	}

	signing := ed25519.NewKeyFromSeed(seed)

	// Same scalar derivation as ed25519, clamped for X25519.
	h := sha512.Sum512(seed)
	xPriv := make([]byte, curve25519.ScalarSize)
	copy(xPriv, h[:curve25519.ScalarSize])
	xPriv[0] &= 248
	xPriv[31] &= 127
	xPriv[31] |= 64

	xPub, err := curve25519.X25519(xPriv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive x25519 public key: %w", err)
	}

	pub := signing.Public().(ed25519.PublicKey)
	return &Keys{
		seed:    append([]byte(nil), seed...),
		signing: signing,
		xPriv:   xPriv,
		xPub:    xPub,
		pubkey:  hex.EncodeToString(pub) + hex.EncodeToString(xPub),
	}, nil
}

// Parse reads a hex-encoded secret seed, ignoring surrounding whitespace.
func Parse(secret string) (*Keys, error) {
	seed, err := hex.DecodeString(strings.TrimSpace(secret))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return FromSeed(seed)
}

// PublicKey returns the public identity string.
func (k *Keys) PublicKey() string {
	return k.pubkey
}

// Secret returns the hex-encoded seed. Treat it as a password.
func (k *Keys) Secret() string {
	return hex.EncodeToString(k.seed)
}

// Sign stamps e with the owner's pubkey, its content-addressed ID and an
// ed25519 signature over that ID.
func (k *Keys) Sign(e *envelope.Envelope) error {
	e.Pubkey = k.pubkey
	id, err := envelope.ComputeID(*e)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	idBytes, err := hex.DecodeString(id)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	e.ID = id
	e.Sig = hex.EncodeToString(ed25519.Sign(k.signing, idBytes))
	return nil
}
