package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"

	"github.com/roach88/relaykv/internal/identity"
	"github.com/roach88/relaykv/internal/kv"
	"github.com/roach88/relaykv/internal/operation"
	"github.com/roach88/relaykv/internal/relay"
	"github.com/roach88/relaykv/internal/relay/memrelay"
	"github.com/roach88/relaykv/internal/testutil"
	"github.com/roach88/relaykv/internal/transport"
)

// listContract backs the push and list_get ops.
var listContract = operation.AppendContract[json.RawMessage]("list")

// codeInvalidInput marks a step whose value could not be parsed.
const codeInvalidInput = "INVALID_INPUT"

// Harness executes one scenario.
type Harness struct {
	db     *kv.DB
	relays []*memrelay.Relay
	clock  *testutil.DeterministicClock
	pubkey string
	logger *slog.Logger
	seq    int64
}

// Run executes a scenario against fresh in-memory relays and returns the
// result. An error is returned only when the scenario cannot be set up;
// failed expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		event, count := h.execute(ctx, step)
		result.AddTrace(event)
		for _, msg := range checkExpect(step, event, count) {
			result.AddError(fmt.Sprintf("flow[%d] %s %s: %s", i, step.Op, step.Key, msg))
		}
		h.logger.Info("step completed", "step", i, "op", step.Op, "key", step.Key, "error", event.Error)
	}

	actx := &AssertionContext{Ctx: ctx, Relays: h.relays, Pubkey: h.pubkey}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in scenarios

	n := scenario.Relays
	if n == 0 {
		n = 1
	}
	relays := make([]*memrelay.Relay, n)
	pooled := make([]relay.Relay, n)
	for i := range relays {
		relays[i] = memrelay.New(fmt.Sprintf("%s-%d", scenario.Name, i))
		pooled[i] = relays[i]
	}
	pool, err := transport.NewPool(pooled, transport.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create relay pool: %w", err)
	}

	keys, err := identity.Parse(testutil.TestSecret)
	if err != nil {
		return nil, fmt.Errorf("load scenario identity: %w", err)
	}

	start := scenario.ClockStart
	if start == 0 {
		start = testutil.DefaultEpoch
	}
	clock := testutil.NewDeterministicClockAt(start)

	opts := kv.DefaultQueryOptions()
	if scenario.AggregateCount > 0 {
		opts.AggregateCount = scenario.AggregateCount
	}

	db, err := kv.New(keys, pool,
		kv.WithClock(clock),
		kv.WithLogger(logger),
		kv.WithQueryOptions(opts),
	)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &Harness{
		db:     db,
		relays: relays,
		clock:  clock,
		pubkey: keys.PublicKey(),
		logger: logger,
	}, nil
}

// execute runs one step. The returned count is the number of history
// records for history steps.
func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, int) {
	h.seq++
	event := TraceEvent{Seq: h.seq, Op: step.Op, Key: step.Key, Value: step.Value}
	if step.At > 0 {
		h.clock.Set(step.At)
	}

	fail := func(err error) (TraceEvent, int) {
		event.Error = string(kv.CodeOf(err))
		if event.Error == "" {
			event.Error = codeInvalidInput
		}
		return event, 0
	}

	switch step.Op {
	case OpStore:
		if _, err := h.db.Store(ctx, step.Key, step.Value); err != nil {
			return fail(err)
		}

	case OpRead:
		v, err := h.db.Read(ctx, step.Key)
		if err != nil {
			return fail(err)
		}
		event.Result = v

	case OpReadSingleton:
		v, err := h.db.ReadSingleton(ctx, step.Key)
		if err != nil {
			return fail(err)
		}
		event.Result = v

	case OpHistory:
		opts := h.db.QueryOptions()
		opts.Decrypt = !step.Raw
		history, err := h.db.ReadHistory(ctx, step.Key, opts)
		if err != nil {
			return fail(err)
		}
		// Stored contents are ciphertext with random nonces; only the
		// count is stable.
		if step.Raw {
			event.Result = strconv.Itoa(history.Len())
		} else {
			event.Values = history.Contents()
		}
		return event, history.Len()

	case OpAggregate:
		if err := h.db.Aggregate(ctx, step.Key); err != nil {
			return fail(err)
		}

	case OpRemove:
		if err := h.db.Remove(ctx, step.Key); err != nil {
			return fail(err)
		}

	case OpCounter:
		op, err := operation.ParseCounterOp(step.Value)
		if err != nil {
			return fail(err)
		}
		if _, err := kv.StoreEvent(ctx, h.db, step.Key, operation.Counter, op); err != nil {
			return fail(err)
		}

	case OpCounterGet:
		n, err := kv.ReadEvent(ctx, h.db, step.Key, operation.Counter)
		if err != nil {
			return fail(err)
		}
		event.Result = strconv.FormatInt(n, 10)

	case OpPay:
		p, err := operation.ParsePayment(step.Value)
		if err != nil {
			return fail(err)
		}
		if _, err := kv.StoreEvent(ctx, h.db, step.Key, operation.PaymentStatus, p); err != nil {
			return fail(err)
		}

	case OpPayGet:
		paid, err := kv.ReadEvent(ctx, h.db, step.Key, operation.PaymentStatus)
		if err != nil {
			return fail(err)
		}
		event.Result = strconv.FormatBool(paid)

	case OpPush:
		if !json.Valid([]byte(step.Value)) {
			return fail(fmt.Errorf("value is not JSON: %q", step.Value))
		}
		push := operation.Push[json.RawMessage]{Value: json.RawMessage(step.Value)}
		if _, err := kv.StoreEvent(ctx, h.db, step.Key, listContract, push); err != nil {
			return fail(err)
		}

	case OpListGet:
		list, err := kv.ReadEvent(ctx, h.db, step.Key, listContract)
		if err != nil {
			return fail(err)
		}
		event.Values = make([]string, len(list))
		for i, v := range list {
			event.Values[i] = string(v)
		}
		return event, len(list)
	}

	return event, 0
}

// checkExpect compares a step's outcome with its expect clause.
func checkExpect(step Step, event TraceEvent, count int) []string {
	var errs []string
	expect := step.Expect
	if expect == nil {
		if event.Error != "" {
			errs = append(errs, fmt.Sprintf("unexpected error %s", event.Error))
		}
		return errs
	}

	if expect.Error != event.Error {
		want := expect.Error
		if want == "" {
			want = "success"
		}
		got := event.Error
		if got == "" {
			got = "success"
		}
		errs = append(errs, fmt.Sprintf("expected %s, got %s", want, got))
		return errs
	}
	if expect.Value != nil && *expect.Value != event.Result {
		errs = append(errs, fmt.Sprintf("expected value %q, got %q", *expect.Value, event.Result))
	}
	if expect.Values != nil && !slices.Equal(expect.Values, event.Values) {
		errs = append(errs, fmt.Sprintf("expected values %q, got %q", expect.Values, event.Values))
	}
	if expect.Count != nil && *expect.Count != count {
		errs = append(errs, fmt.Sprintf("expected %d records, got %d", *expect.Count, count))
	}
	return errs
}
