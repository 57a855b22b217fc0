package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relaykv/internal/envelope"
)

func TestCompare(t *testing.T) {
	a := New(100, "a", "id-b")
	b := New(200, "b", "id-a")
	c := New(100, "c", "id-c")

	assert.Negative(t, Compare(a, b))
	assert.Positive(t, Compare(b, a))
	assert.Negative(t, Compare(a, c), "same timestamp falls back to id")
	assert.Zero(t, Compare(a, a))
}

func TestEqual_UsesID(t *testing.T) {
	assert.True(t, Equal(New(100, "x", "e1"), New(200, "y", "e1")))
	assert.False(t, Equal(New(100, "x", "e1"), New(100, "x", "e2")))
}

func TestSet_OrdersByTimestamp(t *testing.T) {
	s := NewSet(
		New(100, "Value1", "Event1"),
		New(200, "Value2", "Event2"),
		New(150, "Value3", "Event3"),
	)

	assert.Equal(t, []string{"Value1", "Value3", "Value2"}, s.Contents())
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, "Value2", last.Content)
}

func TestSet_DeduplicatesByID(t *testing.T) {
	s := NewSet()
	assert.True(t, s.Insert(New(100, "Value1", "Event1")))
	assert.False(t, s.Insert(New(100, "Value2", "Event1")))
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains("Event1"))
}

func TestSet_KeepsTimestampCollisions(t *testing.T) {
	s := NewSet(New(100, "first", "b"), New(100, "second", "a"))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"a", "b"}, s.IDs())
}

func TestSet_Union(t *testing.T) {
	s := NewSet(New(1, "a", "1"), New(3, "c", "3"))
	s.Union(NewSet(New(2, "b", "2"), New(3, "c", "3")))
	s.Union(nil)

	assert.Equal(t, []string{"a", "b", "c"}, s.Contents())
}

func TestSet_Empty(t *testing.T) {
	var s Set
	assert.Equal(t, 0, s.Len())
	_, ok := s.Last()
	assert.False(t, ok)
	assert.Empty(t, s.Records())

	var nilSet *Set
	assert.Equal(t, 0, nilSet.Len())
}

func TestSnapshotPayload(t *testing.T) {
	payload, err := MarshalSnapshot(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", payload)

	payload, err = MarshalSnapshot([]Record{New(1700000000, "ciphertext", "abc")})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"created_at":1700000000,"content":"ciphertext","event_id":"abc"}]`, payload)

	records, err := UnmarshalSnapshot(payload)
	require.NoError(t, err)
	assert.Equal(t, []Record{New(1700000000, "ciphertext", "abc")}, records)
}

func TestUnmarshalSnapshot_Malformed(t *testing.T) {
	for _, payload := range []string{"", "{}", "not json", `[{"created_at":1,"content":"x"}]`} {
		_, err := UnmarshalSnapshot(payload)
		assert.ErrorIs(t, err, ErrMalformedSnapshot, "payload %q", payload)
	}
}

func TestFromEnvelope(t *testing.T) {
	env := envelope.Envelope{ID: "id", CreatedAt: 7, Content: "c", Kind: envelope.KindWrite}
	assert.Equal(t, New(7, "c", "id"), FromEnvelope(env))
}
