// Package harness runs YAML scenarios against a store backed by in-memory
// relays and compares their traces with golden files.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	aggregate_count: 2        # optional compaction threshold
//	relays: 1                 # optional number of in-memory relays
//	clock_start: 1700000000   # optional first record timestamp
//	flow:
//	  - op: store
//	    key: age
//	    value: "30"
//	    at: 1700000100        # optional record timestamp
//	  - op: history
//	    key: age
//	    raw: true             # skip decryption, check the count only
//	    expect:
//	      count: 1
//	  - op: read
//	    key: age
//	    expect:
//	      value: "30"
//	  - op: aggregate
//	    key: empty
//	    expect:
//	      error: NO_EVENTS_TO_AGGREGATE
//	assertions:
//	  - type: relay_count
//	    kind: write
//	    key: age
//	    count: 1
//
// # Operations
//
//   - store, read, read_singleton, history, aggregate, remove
//   - counter (value: increment|decrement), counter_get
//   - pay (value: "amount,status"), pay_get
//   - push (value: JSON), list_get
//
// # Assertion Types
//
//   - relay_count: number of envelopes of a kind under a key on every relay
//   - snapshot_records: number of records embedded in the live snapshot
//   - trace_count: number of steps with the given op
//   - trace_order: ops appear in the given order
//
// # Deterministic Testing
//
// Scenarios run with a fixed identity, a deterministic clock and fresh
// relays, so traces are identical across runs. Envelope IDs depend on
// encryption nonces and are kept out of traces.
package harness
