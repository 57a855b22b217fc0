package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a sequence of store operations with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// AggregateCount overrides the compaction threshold when positive.
	AggregateCount int `yaml:"aggregate_count,omitempty"`

	// Relays is the number of in-memory relays. Defaults to 1.
	Relays int `yaml:"relays,omitempty"`

	// ClockStart is the first record timestamp. Defaults to
	// testutil.DefaultEpoch.
	ClockStart uint64 `yaml:"clock_start,omitempty"`

	// Flow lists the steps to execute.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and relay contents.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one store operation.
type Step struct {
	Op    string `yaml:"op"`
	Key   string `yaml:"key"`
	Value string `yaml:"value,omitempty"`

	// At pins the record timestamp of a write step.
	At uint64 `yaml:"at,omitempty"`

	// Raw reads history without decryption.
	Raw bool `yaml:"raw,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected outcome of a step. Unset fields are not checked.
type Expect struct {
	Value  *string  `yaml:"value,omitempty"`
	Values []string `yaml:"values,omitempty"`
	Count  *int     `yaml:"count,omitempty"`

	// Error is the expected error code; empty expects success.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	Type  string   `yaml:"type"`
	Kind  string   `yaml:"kind,omitempty"`
	Key   string   `yaml:"key,omitempty"`
	Op    string   `yaml:"op,omitempty"`
	Ops   []string `yaml:"ops,omitempty"`
	Count int      `yaml:"count,omitempty"`
}

// Step operations.
const (
	OpStore         = "store"
	OpRead          = "read"
	OpReadSingleton = "read_singleton"
	OpHistory       = "history"
	OpAggregate     = "aggregate"
	OpRemove        = "remove"
	OpCounter       = "counter"
	OpCounterGet    = "counter_get"
	OpPay           = "pay"
	OpPayGet        = "pay_get"
	OpPush          = "push"
	OpListGet       = "list_get"
)

var knownOps = map[string]bool{
	OpStore: true, OpRead: true, OpReadSingleton: true, OpHistory: true,
	OpAggregate: true, OpRemove: true, OpCounter: true, OpCounterGet: true,
	OpPay: true, OpPayGet: true, OpPush: true, OpListGet: true,
}

// Assertion type constants.
const (
	AssertRelayCount      = "relay_count"
	AssertSnapshotRecords = "snapshot_records"
	AssertTraceCount      = "trace_count"
	AssertTraceOrder      = "trace_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if s.Relays < 0 {
		return fmt.Errorf("relays must be non-negative")
	}

	for i, step := range s.Flow {
		if !knownOps[step.Op] {
			return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
		}
		if step.Key == "" {
			return fmt.Errorf("flow[%d]: key is required", i)
		}
		switch step.Op {
		case OpStore, OpCounter, OpPay, OpPush:
			if step.Value == "" {
				return fmt.Errorf("flow[%d]: value is required for %s", i, step.Op)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertRelayCount:
		if a.Key == "" || (a.Kind != "write" && a.Kind != "snapshot") {
			return fmt.Errorf("assertions[%d]: relay_count needs key and kind write|snapshot", index)
		}
	case AssertSnapshotRecords:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for snapshot_records", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
