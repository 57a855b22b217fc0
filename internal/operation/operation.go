// Package operation defines replayable operations and the contracts that
// encode them as stored payloads.
//
// A key's history is a sequence of rendered operations. Reading folds them,
// oldest first, from the contract's zero value. Payloads carry an explicit
// type discriminant:
//
//	{"type":"counter","body":"increment"}
//
// Contracts may also accept an older untyped encoding through Legacy.
package operation

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Operation transforms an accumulated value. Apply must be pure.
type Operation[V any] interface {
	Apply(V) V
}

// Errors returned by Parse and Fold.
var (
	ErrMalformed    = errors.New("malformed operation payload")
	ErrKindMismatch = errors.New("operation kind mismatch")
)

// Contract binds an operation type O to the value V it reduces into.
type Contract[O Operation[V], V any] struct {
	// Kind is written as the payload's type discriminant.
	Kind string

	// Zero returns the initial value of a fold. Nil means V's zero value.
	Zero func() V

	// Legacy parses payloads that are not typed envelopes. Nil rejects them.
	Legacy func(payload string) (O, error)
}

type typedPayload struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

// Render encodes op as a typed payload.
func (c Contract[O, V]) Render(op O) (string, error) {
	body, err := json.Marshal(op)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", c.Kind, err)
	}
	out, err := json.Marshal(typedPayload{Type: c.Kind, Body: body})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", c.Kind, err)
	}
	return string(out), nil
}

// Parse decodes a payload written by Render or, failing that, by Legacy.
func (c Contract[O, V]) Parse(payload string) (O, error) {
	var op O

	var typed typedPayload
	if err := json.Unmarshal([]byte(payload), &typed); err == nil && typed.Type != "" && typed.Body != nil {
		if typed.Type != c.Kind {
			return op, fmt.Errorf("%w: want %q, got %q", ErrKindMismatch, c.Kind, typed.Type)
		}
		if err := json.Unmarshal(typed.Body, &op); err != nil {
			return op, fmt.Errorf("%w: %s body: %v", ErrMalformed, c.Kind, err)
		}
		return op, nil
	}

	if c.Legacy == nil {
		return op, fmt.Errorf("%w: %q is not a %s payload", ErrMalformed, payload, c.Kind)
	}
	op, err := c.Legacy(payload)
	if err != nil {
		return op, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return op, nil
}

// ZeroValue returns the initial value of a fold.
func (c Contract[O, V]) ZeroValue() V {
	if c.Zero == nil {
		var v V
		return v
	}
	return c.Zero()
}

// Fold parses every payload in order and applies it to the zero value. The
// first parse failure aborts the fold.
func (c Contract[O, V]) Fold(payloads []string) (V, error) {
	v := c.ZeroValue()
	for i, p := range payloads {
		op, err := c.Parse(p)
		if err != nil {
			var zero V
			return zero, fmt.Errorf("payload %d: %w", i, err)
		}
		v = op.Apply(v)
	}
	return v, nil
}
