package kv

import (
	"context"

	"github.com/roach88/relaykv/internal/envelope"
	"github.com/roach88/relaykv/internal/record"
)

// Aggregate folds the individual records of key into a new snapshot
// together with the records of the live snapshot, then asks relays to
// delete the absorbed records.
//
// Contents are carried as stored; nothing is decrypted. A failed deletion
// request is logged and counted but not returned: the records it names are
// already in the snapshot and reads deduplicate them.
func (db *DB) Aggregate(ctx context.Context, key string) (err error) {
	ctx, finish := db.startOp(ctx, "aggregate", key)
	defer func() { finish(err) }()

	pop, err := db.fetchPopulation(ctx, key)
	if err != nil {
		return err
	}
	if len(pop.writes) == 0 {
		return newError(CodeNoEventsToAggregate, key, "no events to aggregate", nil)
	}

	merged := record.NewSet()
	for _, env := range pop.writes {
		merged.Insert(record.FromEnvelope(env))
	}
	if snap, ok := pop.liveSnapshot(); ok {
		records, err := snapshotRecords(snap, key)
		if err != nil {
			return err
		}
		for _, r := range records {
			merged.Insert(r)
		}
	}

	payload, err := record.MarshalSnapshot(merged.Records())
	if err != nil {
		return newError(CodeSerializationFailure, key, "encode snapshot", err)
	}

	snap, err := db.sign(envelope.New(envelope.KindSnapshot, db.snapshotTime(pop), payload, envelope.KeyTag(key)), key)
	if err != nil {
		return err
	}
	if _, err := db.publish(ctx, snap, key); err != nil {
		return err
	}
	compactionsTotal.Inc()
	compactedRecordsTotal.Add(float64(len(pop.writes)))

	absorbed := make([]string, len(pop.writes))
	for i, env := range pop.writes {
		absorbed[i] = env.ID
	}
	if err := db.requestDeletion(ctx, key, "aggregated", absorbed); err != nil {
		deletionFailuresTotal.Inc()
		db.logger.Warn("failed to delete aggregated records",
			"key", key,
			"records", len(absorbed),
			"error", err,
		)
	}

	db.logger.Info("key compacted",
		"key", key,
		"snapshot", snap.ID,
		"records", merged.Len(),
		"absorbed", len(absorbed),
	)
	return nil
}

// snapshotTime returns a timestamp strictly newer than every snapshot in
// pop, so relays do not keep an older snapshot over the new one.
func (db *DB) snapshotTime(pop population) uint64 {
	now := db.clock.Now()
	if live, ok := pop.liveSnapshot(); ok && now <= live.CreatedAt {
		return live.CreatedAt + 1
	}
	return now
}

// requestDeletion publishes one deletion request naming ids.
func (db *DB) requestDeletion(ctx context.Context, key, reason string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	req, err := db.sign(envelope.NewDeletion(db.clock.Now(), reason, ids...), key)
	if err != nil {
		return err
	}
	_, err = db.publish(ctx, req, key)
	return err
}
