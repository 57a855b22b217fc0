package envelope

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// DomainEnvelope prefixes every envelope ID hash.
// The version suffix leaves room for algorithm migration.
const DomainEnvelope = "relaykv/envelope/v1"

// Verification errors.
var (
	ErrInvalidID        = errors.New("envelope id does not match content")
	ErrInvalidSignature = errors.New("envelope signature does not verify")
	ErrInvalidPubkey    = errors.New("envelope pubkey is malformed")
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The NUL separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return h.Sum(nil)
}

// ComputeID returns the content-addressed ID of e. ID and Sig are not part
// of the hashed data.
func ComputeID(e Envelope) (string, error) {
	tags := e.Tags
	if tags == nil {
		tags = Tags{}
	}
	canonical, err := MarshalCanonical([]any{0, e.Pubkey, e.CreatedAt, e.Kind, tags, e.Content})
	if err != nil {
		return "", fmt.Errorf("ComputeID: failed to marshal: %w", err)
	}
	return hex.EncodeToString(hashWithDomain(DomainEnvelope, canonical)), nil
}

// SigningKey extracts the ed25519 verification key from a pubkey string.
// Pubkeys are hex(ed25519 public key || X25519 public key).
func SigningKey(pubkey string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(pubkey)
	if err != nil || len(raw) != 2*ed25519.PublicKeySize {
		return nil, ErrInvalidPubkey
	}
	return ed25519.PublicKey(raw[:ed25519.PublicKeySize]), nil
}

// Verify checks that e's ID matches its content and that Sig is a valid
// signature by Pubkey over the ID.
func Verify(e Envelope) error {
	id, err := ComputeID(e)
	if err != nil {
		return err
	}
	if id != e.ID {
		return ErrInvalidID
	}
	pub, err := SigningKey(e.Pubkey)
	if err != nil {
		return err
	}
	idBytes, err := hex.DecodeString(e.ID)
	if err != nil {
		return ErrInvalidID
	}
	sig, err := hex.DecodeString(e.Sig)
	if err != nil || !ed25519.Verify(pub, idBytes, sig) {
		return ErrInvalidSignature
	}
	return nil
}
