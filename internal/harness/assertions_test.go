package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion string
		wantErr   string
	}{
		{
			name:      "relay_count",
			assertion: "{type: relay_count, kind: write, key: k, count: 3}",
			wantErr:   "Assertion failed: relay_count",
		},
		{
			name:      "snapshot_records",
			assertion: "{type: snapshot_records, key: k, count: 1}",
			wantErr:   "Expected: 1 records in snapshot",
		},
		{
			name:      "trace_count",
			assertion: "{type: trace_count, op: store, count: 1}",
			wantErr:   "Actual: 2",
		},
		{
			name:      "trace_order",
			assertion: "{type: trace_order, ops: [read, store]}",
			wantErr:   "only the first 1 found in order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario := mustParse(t, `
name: failing
description: assertion does not hold
flow:
  - op: store
    key: k
    value: a
  - op: store
    key: k
    value: b
  - op: read
    key: k
assertions:
  - `+tt.assertion)
			result, err := Run(scenario)
			require.NoError(t, err)

			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], "assertions[0]")
			assert.Contains(t, result.Errors[0], tt.wantErr)
		})
	}
}

func TestAssertions_TraceCountScopedToKey(t *testing.T) {
	scenario := mustParse(t, `
name: scoped
description: trace_count filters by key
flow:
  - op: store
    key: a
    value: "1"
  - op: store
    key: b
    value: "2"
assertions:
  - type: trace_count
    op: store
    key: a
    count: 1
  - type: trace_count
    op: store
    count: 2
`)
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "2 store steps",
		Actual:   "1",
		Trace: []TraceEvent{
			{Seq: 1, Op: OpStore, Key: "k"},
			{Seq: 2, Op: OpRead, Key: "x", Error: "NOT_FOUND"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 2 store steps")
	assert.Contains(t, msg, "[1] store k\n")
	assert.Contains(t, msg, "[2] read x -> NOT_FOUND")

	var target *AssertionError
	assert.True(t, errors.As(error(err), &target))
}
