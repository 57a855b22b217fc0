package envelope

import "slices"

// Filter selects envelopes on a relay. Every non-empty field must match
// (NIP-01 semantics); values within one field are alternatives.
type Filter struct {
	IDs     []string `json:"ids,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Kinds   []Kind   `json:"kinds,omitempty"`
	Keys    []string `json:"#d,omitempty"`
	Since   uint64   `json:"since,omitempty"`
	Until   uint64   `json:"until,omitempty"`

	// Limit keeps only the newest Limit matches when positive.
	Limit int `json:"limit,omitempty"`
}

// KeyFilter selects one author's envelopes of one kind under one key.
func KeyFilter(author string, kind Kind, key string) Filter {
	return Filter{
		Authors: []string{author},
		Kinds:   []Kind{kind},
		Keys:    []string{key},
	}
}

// Matches reports whether e satisfies every constraint except Limit.
func (f Filter) Matches(e Envelope) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, e.ID) {
		return false
	}
	if len(f.Authors) > 0 && !slices.Contains(f.Authors, e.Pubkey) {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, e.Kind) {
		return false
	}
	if len(f.Keys) > 0 && !slices.ContainsFunc(e.Tags.Values(TagKey), func(v string) bool {
		return slices.Contains(f.Keys, v)
	}) {
		return false
	}
	if f.Since > 0 && e.CreatedAt < f.Since {
		return false
	}
	if f.Until > 0 && e.CreatedAt > f.Until {
		return false
	}
	return true
}

// Select returns the envelopes matching f in ascending order, trimmed to the
// newest f.Limit when a limit is set. The input slice is not modified.
func (f Filter) Select(envs []Envelope) []Envelope {
	out := make([]Envelope, 0, len(envs))
	for _, e := range envs {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	Sort(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}
