package kv

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/relaykv/internal/envelope"
	"github.com/roach88/relaykv/internal/identity"
	"github.com/roach88/relaykv/internal/relay"
	"github.com/roach88/relaykv/internal/relay/memrelay"
	"github.com/roach88/relaykv/internal/testutil"
	"github.com/roach88/relaykv/internal/transport"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	db    *DB
	keys  *identity.Keys
	relay *memrelay.Relay
	clock *testutil.DeterministicClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	r := memrelay.New(t.Name())
	pool, err := transport.NewPool([]relay.Relay{r}, transport.WithLogger(discardLogger))
	require.NoError(t, err)
	return newFixtureWith(t, r, pool, opts...)
}

func newFixtureWith(t *testing.T, r *memrelay.Relay, tr transport.Transport, opts ...Option) *fixture {
	t.Helper()
	keys := testutil.Keys(t)
	clock := testutil.NewDeterministicClock()
	opts = append([]Option{WithClock(clock), WithLogger(discardLogger)}, opts...)
	db, err := New(keys, tr, opts...)
	require.NoError(t, err)
	return &fixture{db: db, keys: keys, relay: r, clock: clock}
}

// raw returns what the relay holds for key under kind.
func (f *fixture) raw(t *testing.T, kind envelope.Kind, key string) []envelope.Envelope {
	t.Helper()
	envs, err := f.relay.Query(context.Background(), envelope.KeyFilter(f.keys.PublicKey(), kind, key))
	require.NoError(t, err)
	return envs
}

func (f *fixture) store(t *testing.T, key string, values ...string) []string {
	t.Helper()
	ids := make([]string, len(values))
	for i, v := range values {
		id, err := f.db.Store(context.Background(), key, v)
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

// faultyTransport wraps a transport and fails selected calls.
type faultyTransport struct {
	transport.Transport
	failPublishKind envelope.Kind
	failFetch       bool
}

var errInjected = errors.New("injected failure")

func (f *faultyTransport) Publish(ctx context.Context, env envelope.Envelope) (string, error) {
	if f.failPublishKind != 0 && env.Kind == f.failPublishKind {
		return "", errInjected
	}
	return f.Transport.Publish(ctx, env)
}

func (f *faultyTransport) Fetch(ctx context.Context, filter envelope.Filter, opts transport.FetchOptions) ([]envelope.Envelope, error) {
	if f.failFetch {
		return nil, errInjected
	}
	return f.Transport.Fetch(ctx, filter, opts)
}
