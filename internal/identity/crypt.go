package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// payloadVersion is the first byte of every ciphertext.
const payloadVersion = 1

// conversationSalt binds derived keys to this payload format.
const conversationSalt = "relaykv/conversation/v1"

// Encryption errors.
var (
	ErrEncrypt = errors.New("encryption failed")
	ErrDecrypt = errors.New("decryption failed")
)

// conversationKey derives the symmetric key shared between k and peer.
// The derivation is symmetric: a.conversationKey(b) == b.conversationKey(a).
func (k *Keys) conversationKey(peer string) ([]byte, error) {
	raw, err := hex.DecodeString(peer)
	if err != nil || len(raw) != 64 {
		return nil, fmt.Errorf("malformed peer pubkey")
	}
	shared, err := curve25519.X25519(k.xPriv, raw[32:])
	if err != nil {
		return nil, fmt.Errorf("key agreement: %w", err)
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, []byte(conversationSalt), nil), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext for recipient. The output is
// base64(version || 24-byte nonce || XChaCha20-Poly1305 ciphertext).
func (k *Keys) Encrypt(recipient, plaintext string) (string, error) {
	key, err := k.conversationKey(recipient)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncrypt, err)
	}

	out := make([]byte, 1+chacha20poly1305.NonceSizeX, 1+chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	out[0] = payloadVersion
	if _, err := rand.Read(out[1:]); err != nil {
		return "", fmt.Errorf("%w: nonce: %v", ErrEncrypt, err)
	}
	out = aead.Seal(out, out[1:1+chacha20poly1305.NonceSizeX], []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a ciphertext produced by sender's Encrypt addressed to k.
func (k *Keys) Decrypt(sender, ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: not base64", ErrDecrypt)
	}
	if len(raw) < 1+chacha20poly1305.NonceSizeX || raw[0] != payloadVersion {
		return "", fmt.Errorf("%w: unknown payload format", ErrDecrypt)
	}
	key, err := k.conversationKey(sender)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	nonce := raw[1 : 1+chacha20poly1305.NonceSizeX]
	plain, err := aead.Open(nil, nonce, raw[1+chacha20poly1305.NonceSizeX:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plain), nil
}
