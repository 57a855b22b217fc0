package kv

import (
	"context"

	"github.com/roach88/relaykv/internal/operation"
)

// StoreEvent renders op through contract and stores it under key.
func StoreEvent[O operation.Operation[V], V any](ctx context.Context, db *DB, key string, contract operation.Contract[O, V], op O) (string, error) {
	payload, err := contract.Render(op)
	if err != nil {
		return "", newError(CodeSerializationFailure, key, "render operation", err)
	}
	return db.Store(ctx, key, payload)
}

// ReadEvent folds the decrypted history of key through contract, oldest
// first, starting from the contract's zero value. Any payload that fails to
// parse aborts the fold. An empty history yields the zero value.
func ReadEvent[O operation.Operation[V], V any](ctx context.Context, db *DB, key string, contract operation.Contract[O, V]) (V, error) {
	var zero V

	opts := db.query
	opts.Decrypt = true
	history, err := db.ReadHistory(ctx, key, opts)
	if err != nil {
		return zero, err
	}

	v, err := contract.Fold(history.Contents())
	if err != nil {
		return zero, newError(CodeEventStreamError, key, "fold "+contract.Kind, err)
	}
	return v, nil
}
