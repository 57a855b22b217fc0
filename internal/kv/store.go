package kv

import (
	"context"

	"github.com/roach88/relaykv/internal/envelope"
)

// Store appends value to the history of key and returns the new record's
// envelope ID. The value is encrypted to the owner. Store never compacts.
func (db *DB) Store(ctx context.Context, key, value string) (_ string, err error) {
	ctx, finish := db.startOp(ctx, "store", key)
	defer func() { finish(err) }()

	ciphertext, err := db.keys.Encrypt(db.keys.PublicKey(), value)
	if err != nil {
		return "", newError(CodeEncryptionFailure, key, "encrypt value", err)
	}

	env, err := db.sign(envelope.New(envelope.KindWrite, db.clock.Now(), ciphertext, envelope.KeyTag(key)), key)
	if err != nil {
		return "", err
	}
	id, err := db.publish(ctx, env, key)
	if err != nil {
		return "", err
	}

	storesTotal.Inc()
	db.logger.Debug("record stored", "key", key, "id", id)
	return id, nil
}

// Remove deletes key. It requests deletion of every individual record and
// live snapshot, then publishes an empty snapshot so relays that ignore
// deletion requests also answer an empty history for the snapshot slot.
func (db *DB) Remove(ctx context.Context, key string) (err error) {
	ctx, finish := db.startOp(ctx, "remove", key)
	defer func() { finish(err) }()

	pop, err := db.fetchPopulation(ctx, key)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(pop.writes)+len(pop.snapshots))
	for _, env := range pop.writes {
		ids = append(ids, env.ID)
	}
	for _, env := range pop.snapshots {
		ids = append(ids, env.ID)
	}
	if err := db.requestDeletion(ctx, key, "removed", ids); err != nil {
		return err
	}

	empty, err := db.sign(envelope.New(envelope.KindSnapshot, db.snapshotTime(pop), "[]", envelope.KeyTag(key)), key)
	if err != nil {
		return err
	}
	if _, err := db.publish(ctx, empty, key); err != nil {
		return err
	}

	db.logger.Info("key removed", "key", key, "records", len(ids))
	return nil
}
