// Package relay defines the contract every relay backend implements and
// the acceptance rules they share.
//
// A relay is an independent store-and-forward node. It accepts signed
// envelopes, answers filtered queries, and applies two special rules:
//
//   - Replaceable kinds (30000-39999) keep only the newest envelope per
//     (kind, author, d tag). Older publications are accepted and dropped.
//   - Deletion requests (kind 5) remove the referenced envelopes when they
//     share the request's author, and block their later re-publication.
//
// Relays are not consistent with each other; callers merge their answers.
package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/relaykv/internal/envelope"
)

// Relay is a single relay node.
type Relay interface {
	// URL identifies the relay in logs and pool results.
	URL() string

	// Publish stores a signed envelope. Publishing an envelope that is
	// already stored, superseded or deleted is not an error.
	Publish(ctx context.Context, env envelope.Envelope) error

	// Query returns matching envelopes in ascending (created_at, id) order.
	Query(ctx context.Context, filter envelope.Filter) ([]envelope.Envelope, error)

	// Close releases the relay's resources.
	Close() error
}

// ErrRejected is returned when a relay refuses an envelope.
var ErrRejected = errors.New("envelope rejected")

// Check validates an envelope before a relay accepts it.
func Check(env envelope.Envelope) error {
	if err := envelope.Verify(env); err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if env.Kind.IsReplaceable() && env.Key() == "" {
		return fmt.Errorf("%w: replaceable kind %d without d tag", ErrRejected, env.Kind)
	}
	return nil
}

// ReplaceableKey returns the slot a replaceable envelope occupies and false
// for regular kinds.
func ReplaceableKey(env envelope.Envelope) (string, bool) {
	if !env.Kind.IsReplaceable() {
		return "", false
	}
	return fmt.Sprintf("%d:%s:%s", env.Kind, env.Pubkey, env.Key()), true
}

// DeletionTargets returns the envelope IDs a deletion request names, or nil
// if env is not a deletion request.
func DeletionTargets(env envelope.Envelope) []string {
	if env.Kind != envelope.KindDeletion {
		return nil
	}
	return env.Tags.Values(envelope.TagEvent)
}
