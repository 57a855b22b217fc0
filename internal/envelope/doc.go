// Package envelope defines the signed wire form of every record relaykv
// writes to a relay.
//
// An envelope carries the author's public key, a creation timestamp in
// seconds, a numeric kind (the wire discriminant), single-letter tags and
// the (usually encrypted) content. Its ID is content-addressed:
//
//	id = SHA256("relaykv/envelope/v1" + 0x00 + canonical([0, pubkey, created_at, kind, tags, content]))
//
// where canonical is RFC 8785 JSON with NFC-normalized strings. The signature
// is an ed25519 signature over the raw ID bytes.
//
// Kinds used by the store:
//   - 9215  individual write, tagged ["d", key]
//   - 39215 compacted snapshot, tagged ["d", key]; replaceable per (kind, author, d)
//   - 5     deletion request, tagged ["e", id] for every retired envelope
//
// This package imports nothing internal. Relays, transport and the store
// all build on it.
package envelope
