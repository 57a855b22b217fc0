package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/relaykv/internal/envelope"
	"github.com/roach88/relaykv/internal/record"
	"github.com/roach88/relaykv/internal/relay/memrelay"
)

// AssertionContext gives assertions access to the relays a scenario ran on.
type AssertionContext struct {
	Ctx    context.Context
	Relays []*memrelay.Relay
	Pubkey string
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s", event.Seq, event.Op, event.Key)
		if event.Error != "" {
			fmt.Fprintf(&buf, " -> %s", event.Error)
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertRelayCount:
			err = assertRelayCount(result.Trace, a, actx)
		case AssertSnapshotRecords:
			err = assertSnapshotRecords(result.Trace, a, actx)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func kindOf(name string) envelope.Kind {
	if name == "snapshot" {
		return envelope.KindSnapshot
	}
	return envelope.KindWrite
}

// assertRelayCount checks that every relay holds exactly Count envelopes of
// the given kind under the key.
func assertRelayCount(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	filter := envelope.KeyFilter(actx.Pubkey, kindOf(a.Kind), a.Key)
	for _, r := range actx.Relays {
		envs, err := r.Query(actx.Ctx, filter)
		if err != nil {
			return fmt.Errorf("query %s: %w", r.URL(), err)
		}
		if len(envs) != a.Count {
			return &AssertionError{
				Type:     AssertRelayCount,
				Expected: fmt.Sprintf("%d %s envelopes under %q", a.Count, a.Kind, a.Key),
				Actual:   fmt.Sprintf("%d on %s", len(envs), r.URL()),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertSnapshotRecords checks the record count of the newest snapshot
// across all relays. No snapshot counts as zero records.
func assertSnapshotRecords(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	filter := envelope.KeyFilter(actx.Pubkey, envelope.KindSnapshot, a.Key)
	var all []envelope.Envelope
	for _, r := range actx.Relays {
		envs, err := r.Query(actx.Ctx, filter)
		if err != nil {
			return fmt.Errorf("query %s: %w", r.URL(), err)
		}
		all = append(all, envs...)
	}

	got := 0
	if live, ok := envelope.Newest(all); ok {
		records, err := record.UnmarshalSnapshot(live.Content)
		if err != nil {
			return err
		}
		got = len(records)
	}
	if got != a.Count {
		return &AssertionError{
			Type:     AssertSnapshotRecords,
			Expected: fmt.Sprintf("%d records in snapshot of %q", a.Count, a.Key),
			Actual:   fmt.Sprintf("%d records", got),
			Trace:    trace,
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, e := range trace {
		if e.Op == a.Op && (a.Key == "" || e.Key == a.Key) {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s steps", a.Count, a.Op),
			Actual:   fmt.Sprintf("%d", n),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks ops appear in order. Other steps may intervene.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, e := range trace {
		if next < len(a.Ops) && e.Op == a.Ops[next] {
			next++
		}
	}
	if next != len(a.Ops) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("ops in order %v", a.Ops),
			Actual:   fmt.Sprintf("only the first %d found in order", next),
			Trace:    trace,
		}
	}
	return nil
}
