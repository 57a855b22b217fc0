package kv

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/relaykv/internal/envelope"
	"github.com/roach88/relaykv/internal/record"
)

// population is everything the relays hold for one key.
type population struct {
	writes    []envelope.Envelope
	snapshots []envelope.Envelope
}

// liveSnapshot returns the newest snapshot. Relays keep one snapshot per
// key, but a pool may merge different ones from different relays.
func (p population) liveSnapshot() (envelope.Envelope, bool) {
	return envelope.Newest(p.snapshots)
}

// fetchPopulation fetches individual writes and snapshots concurrently.
func (db *DB) fetchPopulation(ctx context.Context, key string) (population, error) {
	var pop population
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		envs, err := db.fetchKind(gctx, envelope.KindWrite, key)
		pop.writes = envs
		return err
	})
	g.Go(func() error {
		envs, err := db.fetchKind(gctx, envelope.KindSnapshot, key)
		pop.snapshots = envs
		return err
	})
	if err := g.Wait(); err != nil {
		return population{}, err
	}
	return pop, nil
}

func (db *DB) decrypt(sender, content, key string) (string, error) {
	plaintext, err := db.keys.Decrypt(sender, content)
	if err != nil {
		return "", newError(CodeDecryptionFailure, key, "decrypt record", err)
	}
	return plaintext, nil
}

// snapshotRecords parses the records embedded in snap.
func snapshotRecords(snap envelope.Envelope, key string) ([]record.Record, error) {
	records, err := record.UnmarshalSnapshot(snap.Content)
	if err != nil {
		return nil, newError(CodeSerializationFailure, key, fmt.Sprintf("snapshot %s", snap.ID), err)
	}
	return records, nil
}

// ReadHistory returns every record stored under key, oldest first.
//
// When the key holds more individual records than opts.AggregateCount, the
// key is compacted after the result is built; the result reflects the state
// before compaction. A failed compaction fails the read. A non-positive
// opts.AggregateCount never compacts.
func (db *DB) ReadHistory(ctx context.Context, key string, opts QueryOptions) (_ *record.Set, err error) {
	ctx, finish := db.startOp(ctx, "read_history", key)
	defer func() {
		finish(err)
		readsTotal.WithLabelValues(outcome(err)).Inc()
	}()

	pop, err := db.fetchPopulation(ctx, key)
	if err != nil {
		return nil, err
	}

	history := record.NewSet()
	for _, env := range pop.writes {
		r := record.FromEnvelope(env)
		if opts.Decrypt {
			if r.Content, err = db.decrypt(env.Pubkey, env.Content, key); err != nil {
				return nil, err
			}
		}
		history.Insert(r)
	}

	if snap, ok := pop.liveSnapshot(); ok {
		records, err := snapshotRecords(snap, key)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			if opts.Decrypt {
				if r.Content, err = db.decrypt(snap.Pubkey, r.Content, key); err != nil {
					return nil, err
				}
			}
			history.Insert(r)
		}
	}

	if opts.AggregateCount > 0 && len(pop.writes) > opts.AggregateCount {
		db.logger.Info("compaction threshold exceeded",
			"key", key,
			"records", len(pop.writes),
			"threshold", opts.AggregateCount,
		)
		if err := db.Aggregate(ctx, key); err != nil {
			return nil, err
		}
	}

	return history, nil
}

// Read returns the newest value stored under key.
func (db *DB) Read(ctx context.Context, key string) (string, error) {
	history, err := db.ReadHistory(ctx, key, db.query)
	if err != nil {
		return "", err
	}
	last, ok := history.Last()
	if !ok {
		return "", newError(CodeNotFound, key, "key not found", nil)
	}
	return last.Content, nil
}

// ReadSingleton returns the value of a key written exactly once. Snapshots
// are not consulted. Any other number of individual records is a
// SINGLETON_VIOLATION.
func (db *DB) ReadSingleton(ctx context.Context, key string) (_ string, err error) {
	ctx, finish := db.startOp(ctx, "read_singleton", key)
	defer func() { finish(err) }()

	envs, err := db.fetchKind(ctx, envelope.KindWrite, key)
	if err != nil {
		return "", err
	}
	if len(envs) != 1 {
		return "", newError(CodeSingletonViolation, key, fmt.Sprintf("must be a singleton value, found %d records", len(envs)), nil)
	}
	return db.decrypt(envs[0].Pubkey, envs[0].Content, key)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case CodeOf(err) == CodeDecryptionFailure:
		return "decrypt_error"
	default:
		return "error"
	}
}
