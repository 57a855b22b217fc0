// Package redisrelay is a relay kept in Redis.
//
// Layout under the key prefix:
//
//	<prefix>:event:<id>                    envelope JSON
//	<prefix>:index                         zset of every id, scored by created_at
//	<prefix>:index:<pubkey>:<kind>:<d>     zset per author, kind and key
//	<prefix>:slots                         hash replaceable slot -> id
//	<prefix>:deleted                       hash id -> deleting author
//
// Members with equal scores sort by id, which matches envelope.Compare.
package redisrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/roach88/relaykv/internal/envelope"
	"github.com/roach88/relaykv/internal/relay"
)

// DefaultPrefix namespaces keys when no prefix option is given.
const DefaultPrefix = "relaykv"

const maxTxRetries = 5

// Relay stores envelopes in Redis. It is safe for concurrent use; writers
// coordinate through optimistic transactions.
type Relay struct {
	rdb    *goredis.Client
	url    string
	prefix string
}

var _ relay.Relay = (*Relay)(nil)

// Option configures a Relay.
type Option func(*Relay)

// WithPrefix namespaces every key the relay touches.
func WithPrefix(prefix string) Option {
	return func(r *Relay) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// Open connects to the Redis server at rawURL (redis:// or rediss://) and
// verifies the connection.
func Open(ctx context.Context, rawURL string, opts ...Option) (*Relay, error) {
	options, err := goredis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if options.DialTimeout == 0 {
		options.DialTimeout = 5 * time.Second
	}

	rdb := goredis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	r := &Relay{rdb: rdb, url: rawURL, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// URL implements relay.Relay.
func (r *Relay) URL() string { return r.url }

// Close implements relay.Relay.
func (r *Relay) Close() error { return r.rdb.Close() }

func (r *Relay) eventKey(id string) string { return r.prefix + ":event:" + id }
func (r *Relay) indexKey() string          { return r.prefix + ":index" }
func (r *Relay) slotsKey() string          { return r.prefix + ":slots" }
func (r *Relay) deletedKey() string        { return r.prefix + ":deleted" }

func (r *Relay) keyIndex(pubkey string, kind envelope.Kind, key string) string {
	return fmt.Sprintf("%s:index:%s:%d:%s", r.prefix, pubkey, kind, key)
}

// Publish implements relay.Relay.
func (r *Relay) Publish(ctx context.Context, env envelope.Envelope) error {
	if err := relay.Check(env); err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("publish: marshal: %w", err)
	}

	watched := []string{r.eventKey(env.ID), r.slotsKey(), r.deletedKey()}
	for _, id := range relay.DeletionTargets(env) {
		watched = append(watched, r.eventKey(id))
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = r.rdb.Watch(ctx, func(tx *goredis.Tx) error {
			return r.publishTx(ctx, tx, env, data)
		}, watched...)
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (r *Relay) publishTx(ctx context.Context, tx *goredis.Tx, env envelope.Envelope, data []byte) error {
	n, err := tx.Exists(ctx, r.eventKey(env.ID)).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	author, err := tx.HGet(ctx, r.deletedKey(), env.ID).Result()
	switch {
	case err == nil && author == env.Pubkey:
		return nil
	case err != nil && !errors.Is(err, goredis.Nil):
		return err
	}

	var removed []envelope.Envelope
	slot, replaceable := relay.ReplaceableKey(env)
	if replaceable {
		prev, found, err := r.slotOccupant(ctx, tx, slot)
		if err != nil {
			return err
		}
		if found {
			if envelope.Compare(prev, env) > 0 {
				return nil
			}
			removed = append(removed, prev)
		}
	}

	var tombstones []string
	for _, id := range relay.DeletionTargets(env) {
		target, found, err := r.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if found && target.Pubkey != env.Pubkey {
			continue
		}
		tombstones = append(tombstones, id)
		if found {
			removed = append(removed, target)
		}
	}

	_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, e := range removed {
			r.unindex(ctx, pipe, e)
			if s, ok := relay.ReplaceableKey(e); ok && s != slot {
				pipe.HDel(ctx, r.slotsKey(), s)
			}
		}
		for _, id := range tombstones {
			pipe.HSet(ctx, r.deletedKey(), id, env.Pubkey)
		}
		if replaceable {
			pipe.HSet(ctx, r.slotsKey(), slot, env.ID)
		}
		pipe.Set(ctx, r.eventKey(env.ID), data, 0)
		member := goredis.Z{Score: float64(env.CreatedAt), Member: env.ID}
		pipe.ZAdd(ctx, r.indexKey(), member)
		for _, key := range env.Tags.Values(envelope.TagKey) {
			pipe.ZAdd(ctx, r.keyIndex(env.Pubkey, env.Kind, key), member)
		}
		return nil
	})
	return err
}

func (r *Relay) unindex(ctx context.Context, pipe goredis.Pipeliner, e envelope.Envelope) {
	pipe.Del(ctx, r.eventKey(e.ID))
	pipe.ZRem(ctx, r.indexKey(), e.ID)
	for _, key := range e.Tags.Values(envelope.TagKey) {
		pipe.ZRem(ctx, r.keyIndex(e.Pubkey, e.Kind, key), e.ID)
	}
}

func (r *Relay) slotOccupant(ctx context.Context, tx *goredis.Tx, slot string) (envelope.Envelope, bool, error) {
	id, err := tx.HGet(ctx, r.slotsKey(), slot).Result()
	if errors.Is(err, goredis.Nil) {
		return envelope.Envelope{}, false, nil
	}
	if err != nil {
		return envelope.Envelope{}, false, err
	}
	return r.load(ctx, tx, id)
}

func (r *Relay) load(ctx context.Context, tx *goredis.Tx, id string) (envelope.Envelope, bool, error) {
	raw, err := tx.Get(ctx, r.eventKey(id)).Result()
	if errors.Is(err, goredis.Nil) {
		return envelope.Envelope{}, false, nil
	}
	if err != nil {
		return envelope.Envelope{}, false, err
	}
	var env envelope.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return envelope.Envelope{}, false, fmt.Errorf("decode %s: %w", id, err)
	}
	return env, true, nil
}

// Query implements relay.Relay. Candidates come from the narrowest index
// the filter allows and are then matched in full.
func (r *Relay) Query(ctx context.Context, filter envelope.Filter) ([]envelope.Envelope, error) {
	ids, err := r.candidates(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.eventKey(id)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	envs := make([]envelope.Envelope, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var env envelope.Envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			return nil, fmt.Errorf("query: decode %s: %w", ids[i], err)
		}
		envs = append(envs, env)
	}
	return filter.Select(envs), nil
}

func (r *Relay) candidates(ctx context.Context, filter envelope.Filter) ([]string, error) {
	if len(filter.IDs) > 0 {
		return filter.IDs, nil
	}
	if len(filter.Authors) == 0 || len(filter.Kinds) == 0 || len(filter.Keys) == 0 {
		return r.rdb.ZRange(ctx, r.indexKey(), 0, -1).Result()
	}

	seen := make(map[string]bool)
	var ids []string
	for _, author := range filter.Authors {
		for _, kind := range filter.Kinds {
			for _, key := range filter.Keys {
				members, err := r.rdb.ZRange(ctx, r.keyIndex(author, kind, key), 0, -1).Result()
				if err != nil {
					return nil, err
				}
				for _, id := range members {
					if !seen[id] {
						seen[id] = true
						ids = append(ids, id)
					}
				}
			}
		}
	}
	return ids, nil
}
