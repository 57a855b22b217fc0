// Package relaytest is a conformance suite every relay backend runs in its
// own tests.
package relaytest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relaykv/internal/envelope"
	"github.com/roach88/relaykv/internal/relay"
	"github.com/roach88/relaykv/internal/testutil"
)

// Factory returns a fresh, empty relay. Cleanup is registered on t.
type Factory func(t *testing.T) relay.Relay

// Run executes the conformance suite against relays built by newRelay.
func Run(t *testing.T, newRelay Factory) {
	t.Run("PublishAndQuery", func(t *testing.T) { testPublishAndQuery(t, newRelay(t)) })
	t.Run("PublishIsIdempotent", func(t *testing.T) { testPublishIdempotent(t, newRelay(t)) })
	t.Run("RejectsBadSignature", func(t *testing.T) { testRejectsBadSignature(t, newRelay(t)) })
	t.Run("FiltersByKindAuthorKey", func(t *testing.T) { testFilters(t, newRelay(t)) })
	t.Run("ReplaceableKeepsNewest", func(t *testing.T) { testReplaceable(t, newRelay(t)) })
	t.Run("DeletionRemovesTargets", func(t *testing.T) { testDeletion(t, newRelay(t)) })
	t.Run("DeletionIgnoresOtherAuthors", func(t *testing.T) { testDeletionOtherAuthor(t, newRelay(t)) })
	t.Run("QueryLimit", func(t *testing.T) { testLimit(t, newRelay(t)) })
}

func ids(envs []envelope.Envelope) []string {
	out := make([]string, len(envs))
	for i, e := range envs {
		out[i] = e.ID
	}
	return out
}

func testPublishAndQuery(t *testing.T, r relay.Relay) {
	ctx := context.Background()
	keys := testutil.Keys(t)

	// Published out of order; queries return ascending created_at.
	e3 := testutil.Signed(t, keys, envelope.KindWrite, 300, "age", "c")
	e1 := testutil.Signed(t, keys, envelope.KindWrite, 100, "age", "a")
	e2 := testutil.Signed(t, keys, envelope.KindWrite, 200, "age", "b")
	for _, e := range []envelope.Envelope{e3, e1, e2} {
		require.NoError(t, r.Publish(ctx, e))
	}

	got, err := r.Query(ctx, envelope.KeyFilter(keys.PublicKey(), envelope.KindWrite, "age"))
	require.NoError(t, err)
	assert.Equal(t, []string{e1.ID, e2.ID, e3.ID}, ids(got))
	assert.Equal(t, e1, got[0])
}

func testPublishIdempotent(t *testing.T, r relay.Relay) {
	ctx := context.Background()
	keys := testutil.Keys(t)
	e := testutil.Signed(t, keys, envelope.KindWrite, 100, "k", "v")

	require.NoError(t, r.Publish(ctx, e))
	require.NoError(t, r.Publish(ctx, e))

	got, err := r.Query(ctx, envelope.Filter{IDs: []string{e.ID}})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func testRejectsBadSignature(t *testing.T, r relay.Relay) {
	ctx := context.Background()
	keys := testutil.Keys(t)
	e := testutil.Signed(t, keys, envelope.KindWrite, 100, "k", "v")
	e.Content = "forged"

	err := r.Publish(ctx, e)
	require.Error(t, err)

	got, err := r.Query(ctx, envelope.Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testFilters(t *testing.T, r relay.Relay) {
	ctx := context.Background()
	alice := testutil.Keys(t)
	bob := testutil.NewKeys(t)

	want := testutil.Signed(t, alice, envelope.KindWrite, 100, "age", "a")
	for _, e := range []envelope.Envelope{
		want,
		testutil.Signed(t, alice, envelope.KindWrite, 101, "name", "b"),
		testutil.Signed(t, alice, envelope.KindSnapshot, 102, "age", "[]"),
		testutil.Signed(t, bob, envelope.KindWrite, 103, "age", "c"),
	} {
		require.NoError(t, r.Publish(ctx, e))
	}

	got, err := r.Query(ctx, envelope.KeyFilter(alice.PublicKey(), envelope.KindWrite, "age"))
	require.NoError(t, err)
	assert.Equal(t, []string{want.ID}, ids(got))

	got, err = r.Query(ctx, envelope.Filter{Kinds: []envelope.Kind{envelope.KindWrite}, Keys: []string{"age"}})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = r.Query(ctx, envelope.Filter{Authors: []string{alice.PublicKey()}, Since: 101, Until: 102})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func testReplaceable(t *testing.T, r relay.Relay) {
	ctx := context.Background()
	keys := testutil.Keys(t)

	older := testutil.Signed(t, keys, envelope.KindSnapshot, 100, "age", "[]")
	newer := testutil.Signed(t, keys, envelope.KindSnapshot, 200, "age", `[{"created_at":1,"content":"x","event_id":"a"}]`)
	other := testutil.Signed(t, keys, envelope.KindSnapshot, 150, "name", "[]")

	require.NoError(t, r.Publish(ctx, older))
	require.NoError(t, r.Publish(ctx, newer))
	require.NoError(t, r.Publish(ctx, other))
	// A stale snapshot arriving late must not replace the newer one.
	require.NoError(t, r.Publish(ctx, older))

	got, err := r.Query(ctx, envelope.KeyFilter(keys.PublicKey(), envelope.KindSnapshot, "age"))
	require.NoError(t, err)
	assert.Equal(t, []string{newer.ID}, ids(got))

	got, err = r.Query(ctx, envelope.KeyFilter(keys.PublicKey(), envelope.KindSnapshot, "name"))
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID}, ids(got))
}

func testDeletion(t *testing.T, r relay.Relay) {
	ctx := context.Background()
	keys := testutil.Keys(t)

	e1 := testutil.Signed(t, keys, envelope.KindWrite, 100, "age", "a")
	e2 := testutil.Signed(t, keys, envelope.KindWrite, 101, "age", "b")
	require.NoError(t, r.Publish(ctx, e1))
	require.NoError(t, r.Publish(ctx, e2))

	require.NoError(t, r.Publish(ctx, testutil.SignedDeletion(t, keys, 102, e1.ID)))

	got, err := r.Query(ctx, envelope.KeyFilter(keys.PublicKey(), envelope.KindWrite, "age"))
	require.NoError(t, err)
	assert.Equal(t, []string{e2.ID}, ids(got))

	// Re-publishing a deleted envelope does not resurrect it.
	require.NoError(t, r.Publish(ctx, e1))
	got, err = r.Query(ctx, envelope.KeyFilter(keys.PublicKey(), envelope.KindWrite, "age"))
	require.NoError(t, err)
	assert.Equal(t, []string{e2.ID}, ids(got))
}

func testDeletionOtherAuthor(t *testing.T, r relay.Relay) {
	ctx := context.Background()
	alice := testutil.Keys(t)
	mallory := testutil.NewKeys(t)

	e := testutil.Signed(t, alice, envelope.KindWrite, 100, "age", "a")
	require.NoError(t, r.Publish(ctx, e))
	require.NoError(t, r.Publish(ctx, testutil.SignedDeletion(t, mallory, 101, e.ID)))

	got, err := r.Query(ctx, envelope.Filter{IDs: []string{e.ID}})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func testLimit(t *testing.T, r relay.Relay) {
	ctx := context.Background()
	keys := testutil.Keys(t)
	var all []envelope.Envelope
	for i := uint64(0); i < 5; i++ {
		e := testutil.Signed(t, keys, envelope.KindWrite, 100+i, "k", "v")
		all = append(all, e)
		require.NoError(t, r.Publish(ctx, e))
	}

	f := envelope.KeyFilter(keys.PublicKey(), envelope.KindWrite, "k")
	f.Limit = 2
	got, err := r.Query(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, []string{all[3].ID, all[4].ID}, ids(got))
}
