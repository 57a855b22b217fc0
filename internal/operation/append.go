package operation

import "encoding/json"

// Push appends one value.
type Push[T any] struct {
	Value T
}

// Apply implements Operation. The input slice is not modified.
func (p Push[T]) Apply(list []T) []T {
	out := make([]T, len(list), len(list)+1)
	copy(out, list)
	return append(out, p.Value)
}

// MarshalJSON encodes the pushed value itself.
func (p Push[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Value)
}

// UnmarshalJSON decodes a bare value.
func (p *Push[T]) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &p.Value)
}

// AppendContract returns a contract that collects every pushed value in
// history order. Legacy payloads are bare JSON values.
func AppendContract[T any](kind string) Contract[Push[T], []T] {
	return Contract[Push[T], []T]{
		Kind: kind,
		Zero: func() []T { return []T{} },
		Legacy: func(payload string) (Push[T], error) {
			var p Push[T]
			err := json.Unmarshal([]byte(payload), &p.Value)
			return p, err
		},
	}
}
