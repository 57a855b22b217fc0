package kv

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/relaykv/internal/envelope"
	"github.com/roach88/relaykv/internal/identity"
	"github.com/roach88/relaykv/internal/transport"
)

// ErrNoIdentity is returned by New when no identity is given.
var ErrNoIdentity = errors.New("identity is required")

// DB is a handle on the key space owned by one identity. It is immutable
// after New and safe for concurrent use.
type DB struct {
	keys      *identity.Keys
	transport transport.Transport
	query     QueryOptions
	fetch     transport.FetchOptions
	logger    *slog.Logger
	clock     Clock
	tracer    trace.Tracer
}

// New creates a DB that reads and writes keys owned by keys through t.
func New(keys *identity.Keys, t transport.Transport, opts ...Option) (*DB, error) {
	if keys == nil {
		return nil, ErrNoIdentity
	}
	if t == nil {
		return nil, newError(CodeNoRelaysConfigured, "", "transport is required", transport.ErrNoRelays)
	}

	db := &DB{
		keys:      keys,
		transport: t,
		query:     DefaultQueryOptions(),
		logger:    slog.Default(),
		clock:     systemClock{},
		tracer:    otel.Tracer("relaykv/kv"),
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.query.AggregateCount <= 0 {
		db.query.AggregateCount = DefaultAggregateCount
	}
	return db, nil
}

// PublicKey returns the owner identity's public key.
func (db *DB) PublicKey() string {
	return db.keys.PublicKey()
}

// QueryOptions returns the options used by Read.
func (db *DB) QueryOptions() QueryOptions {
	return db.query
}

// startOp opens a span and returns a finish func that records the outcome.
func (db *DB) startOp(ctx context.Context, name, key string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := db.tracer.Start(ctx, "kv."+name, trace.WithAttributes(attribute.String("relaykv.key", key)))
	return ctx, func(err error) {
		operationDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// sign stamps and signs a new envelope.
func (db *DB) sign(env envelope.Envelope, key string) (envelope.Envelope, error) {
	if err := db.keys.Sign(&env); err != nil {
		return envelope.Envelope{}, newError(CodeSerializationFailure, key, "sign envelope", err)
	}
	return env, nil
}

func (db *DB) publish(ctx context.Context, env envelope.Envelope, key string) (string, error) {
	id, err := db.transport.Publish(ctx, env)
	if err != nil {
		if errors.Is(err, transport.ErrNoRelays) {
			return "", newError(CodeNoRelaysConfigured, key, "publish", err)
		}
		return "", newError(CodeTransportError, key, "publish", err)
	}
	return id, nil
}

func (db *DB) fetchKind(ctx context.Context, kind envelope.Kind, key string) ([]envelope.Envelope, error) {
	envs, err := db.transport.Fetch(ctx, envelope.KeyFilter(db.keys.PublicKey(), kind, key), db.fetch)
	if err != nil {
		if errors.Is(err, transport.ErrNoRelays) {
			return nil, newError(CodeNoRelaysConfigured, key, "fetch", err)
		}
		return nil, newError(CodeTransportError, key, "fetch", err)
	}
	return envs, nil
}
