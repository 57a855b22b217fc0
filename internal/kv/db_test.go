package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relaykv/internal/envelope"
	"github.com/roach88/relaykv/internal/relay"
	"github.com/roach88/relaykv/internal/relay/memrelay"
	"github.com/roach88/relaykv/internal/testutil"
	"github.com/roach88/relaykv/internal/transport"
)

func TestNew_RejectsMissingCollaborators(t *testing.T) {
	pool, err := transport.NewPool([]relay.Relay{memrelay.New(t.Name())})
	require.NoError(t, err)

	_, err = New(nil, pool)
	assert.ErrorIs(t, err, ErrNoIdentity)

	_, err = New(testutil.Keys(t), nil)
	assert.ErrorIs(t, err, ErrNoRelaysConfigured)
	assert.Equal(t, CodeNoRelaysConfigured, CodeOf(err))
}

func TestNew_Defaults(t *testing.T) {
	f := newFixture(t, WithQueryOptions(QueryOptions{Decrypt: false}))
	// A non-positive threshold falls back to the default.
	assert.Equal(t, DefaultAggregateCount, f.db.QueryOptions().AggregateCount)
	assert.False(t, f.db.QueryOptions().Decrypt)
	assert.Equal(t, f.keys.PublicKey(), f.db.PublicKey())
}

func TestStoreRead_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.db.Store(ctx, "age", "30")
	require.NoError(t, err)
	assert.Len(t, id, 64)

	got, err := f.db.Read(ctx, "age")
	require.NoError(t, err)
	assert.Equal(t, "30", got)

	f.store(t, "age", "31")
	got, err = f.db.Read(ctx, "age")
	require.NoError(t, err)
	assert.Equal(t, "31", got)
}

func TestStore_EncryptsContent(t *testing.T) {
	f := newFixture(t)
	f.store(t, "secret", "plaintext")

	envs := f.raw(t, envelope.KindWrite, "secret")
	require.Len(t, envs, 1)
	assert.NotContains(t, envs[0].Content, "plaintext")
	assert.Equal(t, "secret", envs[0].Key())
}

func TestRead_MissingKey(t *testing.T) {
	_, err := newFixture(t).db.Read(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "key=nope")
}

func TestReadHistory_OrderedRegardlessOfArrival(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, w := range []struct {
		at    uint64
		value string
	}{{300, "c"}, {100, "a"}, {200, "b"}} {
		f.clock.Set(w.at)
		f.store(t, "k", w.value)
	}

	history, err := f.db.ReadHistory(ctx, "k", DefaultQueryOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, history.Contents())

	got, err := f.db.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "c", got)
}

func TestReadHistory_WithoutDecryptReturnsStoredContent(t *testing.T) {
	f := newFixture(t)
	f.store(t, "k", "v")

	history, err := f.db.ReadHistory(context.Background(), "k", QueryOptions{Decrypt: false, AggregateCount: 10})
	require.NoError(t, err)
	require.Equal(t, 1, history.Len())
	assert.Equal(t, f.raw(t, envelope.KindWrite, "k")[0].Content, history.Contents()[0])
}

func TestReadHistory_DecryptionFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	bogus := testutil.Signed(t, f.keys, envelope.KindWrite, 100, "k", "not-ciphertext")
	require.NoError(t, f.relay.Publish(ctx, bogus))

	_, err := f.db.ReadHistory(ctx, "k", DefaultQueryOptions())
	assert.ErrorIs(t, err, ErrDecryptionFailure)

	history, err := f.db.ReadHistory(ctx, "k", QueryOptions{AggregateCount: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"not-ciphertext"}, history.Contents())
}

func TestReadHistory_MalformedSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	snap := testutil.Signed(t, f.keys, envelope.KindSnapshot, 100, "k", "{not an array")
	require.NoError(t, f.relay.Publish(ctx, snap))

	_, err := f.db.ReadHistory(ctx, "k", DefaultQueryOptions())
	assert.ErrorIs(t, err, ErrSerializationFailure)
}

func TestReadHistory_PicksNewestSnapshot(t *testing.T) {
	ctx := context.Background()
	keys := testutil.Keys(t)
	a := memrelay.New(t.Name() + "-a")
	b := memrelay.New(t.Name() + "-b")
	pool, err := transport.NewPool([]relay.Relay{a, b}, transport.WithLogger(discardLogger))
	require.NoError(t, err)
	f := newFixtureWith(t, a, pool)

	older := testutil.Signed(t, keys, envelope.KindSnapshot, 100, "k", `[{"created_at":1,"content":"old","event_id":"aa"}]`)
	newer := testutil.Signed(t, keys, envelope.KindSnapshot, 200, "k", `[{"created_at":2,"content":"new","event_id":"bb"}]`)
	require.NoError(t, a.Publish(ctx, older))
	require.NoError(t, b.Publish(ctx, newer))

	history, err := f.db.ReadHistory(ctx, "k", QueryOptions{AggregateCount: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, history.Contents())
}

func TestReadHistory_TransportFailure(t *testing.T) {
	r := memrelay.New(t.Name())
	pool, err := transport.NewPool([]relay.Relay{r}, transport.WithLogger(discardLogger))
	require.NoError(t, err)
	f := newFixtureWith(t, r, &faultyTransport{Transport: pool, failFetch: true})

	_, err = f.db.ReadHistory(context.Background(), "k", DefaultQueryOptions())
	assert.ErrorIs(t, err, ErrTransport)
	assert.True(t, errors.Is(err, errInjected))
}

func TestReadSingleton(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.db.ReadSingleton(ctx, "one")
	assert.ErrorIs(t, err, ErrSingletonViolation)

	f.store(t, "one", "only")
	got, err := f.db.ReadSingleton(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, "only", got)

	f.store(t, "one", "second")
	_, err = f.db.ReadSingleton(ctx, "one")
	assert.ErrorIs(t, err, ErrSingletonViolation)
	assert.Contains(t, err.Error(), "found 2 records")
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store(t, "k", "a", "b")
	require.NoError(t, f.db.Aggregate(ctx, "k"))
	f.store(t, "k", "c")

	require.NoError(t, f.db.Remove(ctx, "k"))

	_, err := f.db.Read(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, f.raw(t, envelope.KindWrite, "k"))
	snaps := f.raw(t, envelope.KindSnapshot, "k")
	require.Len(t, snaps, 1)
	assert.Equal(t, "[]", snaps[0].Content)

	// The key is usable again afterwards.
	f.store(t, "k", "d")
	got, err := f.db.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "d", got)
}

func TestRemove_MissingKeyPublishesEmptySnapshot(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Remove(context.Background(), "ghost"))
	assert.Len(t, f.raw(t, envelope.KindSnapshot, "ghost"), 1)
}

func TestError_Format(t *testing.T) {
	err := newError(CodeTransportError, "k", "publish", errInjected)
	assert.Equal(t, "TRANSPORT_ERROR: publish (key=k): injected failure", err.Error())
	assert.ErrorIs(t, err, errInjected)
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, Code(""), CodeOf(errInjected))
}
