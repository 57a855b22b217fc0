package operation

import "fmt"

// CounterOp adds or subtracts one.
type CounterOp string

// Counter operations.
const (
	Increment CounterOp = "increment"
	Decrement CounterOp = "decrement"
)

// Counter reduces increments and decrements into a signed total.
var Counter = Contract[CounterOp, int64]{
	Kind:   "counter",
	Zero:   func() int64 { return 0 },
	Legacy: ParseCounterOp,
}

// ParseCounterOp parses "increment" or "decrement".
func ParseCounterOp(s string) (CounterOp, error) {
	switch op := CounterOp(s); op {
	case Increment, Decrement:
		return op, nil
	default:
		return "", fmt.Errorf("invalid counter operation %q", s)
	}
}

// Apply implements Operation.
func (op CounterOp) Apply(v int64) int64 {
	switch op {
	case Increment:
		return v + 1
	case Decrement:
		return v - 1
	default:
		return v
	}
}

// UnmarshalText rejects anything but the two counter operations.
func (op *CounterOp) UnmarshalText(text []byte) error {
	parsed, err := ParseCounterOp(string(text))
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}
