package testutil

import (
	"testing"

	"github.com/roach88/relaykv/internal/envelope"
	"github.com/roach88/relaykv/internal/identity"
)

// TestSecret is a fixed identity seed so signed test envelopes are stable.
const TestSecret = "0101010101010101010101010101010101010101010101010101010101010101"

// Keys returns the identity derived from TestSecret.
func Keys(t testing.TB) *identity.Keys {
	t.Helper()
	keys, err := identity.Parse(TestSecret)
	if err != nil {
		t.Fatalf("parse test secret: %v", err)
	}
	return keys
}

// NewKeys returns a fresh random identity.
func NewKeys(t testing.TB) *identity.Keys {
	t.Helper()
	keys, err := identity.Generate()
	if err != nil {
		t.Fatalf("generate keys: %v", err)
	}
	return keys
}

// Signed builds and signs an envelope tagged with key (when non-empty).
func Signed(t testing.TB, keys *identity.Keys, kind envelope.Kind, createdAt uint64, key, content string) envelope.Envelope {
	t.Helper()
	var tags [][]string
	if key != "" {
		tags = append(tags, envelope.KeyTag(key))
	}
	env := envelope.New(kind, createdAt, content, tags...)
	if err := keys.Sign(&env); err != nil {
		t.Fatalf("sign envelope: %v", err)
	}
	return env
}

// SignedDeletion builds and signs a deletion request for ids.
func SignedDeletion(t testing.TB, keys *identity.Keys, createdAt uint64, ids ...string) envelope.Envelope {
	t.Helper()
	env := envelope.NewDeletion(createdAt, "delete events", ids...)
	if err := keys.Sign(&env); err != nil {
		t.Fatalf("sign deletion: %v", err)
	}
	return env
}
