package envelope

import (
	"slices"
	"strings"
)

// Kind is the numeric wire discriminant of an envelope.
type Kind int

// Wire discriminants. The numeric values are fixed by already stored data.
const (
	KindDeletion Kind = 5
	KindWrite    Kind = 9215
	KindSnapshot Kind = 39215
)

// IsReplaceable reports whether relays keep only the newest envelope of this
// kind per (author, d tag).
func (k Kind) IsReplaceable() bool {
	return k >= 30000 && k < 40000
}

// Tag names.
const (
	TagKey   = "d"
	TagEvent = "e"
)

// Tags is the ordered tag list of an envelope. Each tag is [name, value, ...].
type Tags [][]string

// Value returns the first value of the first tag with the given name, or "".
func (t Tags) Value(name string) string {
	for _, tag := range t {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1]
		}
	}
	return ""
}

// Values returns the first value of every tag with the given name.
func (t Tags) Values(name string) []string {
	var out []string
	for _, tag := range t {
		if len(tag) >= 2 && tag[0] == name {
			out = append(out, tag[1])
		}
	}
	return out
}

// Envelope is a signed record as stored on relays.
type Envelope struct {
	ID        string `json:"id"`
	Pubkey    string `json:"pubkey"`
	CreatedAt uint64 `json:"created_at"`
	Kind      Kind   `json:"kind"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// Key returns the logical key the envelope is indexed under (its d tag).
func (e Envelope) Key() string {
	return e.Tags.Value(TagKey)
}

// New returns an unsigned envelope. ID, Pubkey and Sig are filled in by the
// signer.
func New(kind Kind, createdAt uint64, content string, tags ...[]string) Envelope {
	if tags == nil {
		tags = Tags{}
	}
	return Envelope{
		Kind:      kind,
		CreatedAt: createdAt,
		Content:   content,
		Tags:      tags,
	}
}

// KeyTag builds a ["d", key] tag.
func KeyTag(key string) []string {
	return []string{TagKey, key}
}

// NewDeletion builds an unsigned deletion request for the given envelope IDs.
func NewDeletion(createdAt uint64, reason string, ids ...string) Envelope {
	tags := make(Tags, 0, len(ids))
	for _, id := range ids {
		tags = append(tags, []string{TagEvent, id})
	}
	return New(KindDeletion, createdAt, reason, tags...)
}

// Compare orders envelopes by CreatedAt ascending, ties broken by ID.
func Compare(a, b Envelope) int {
	switch {
	case a.CreatedAt < b.CreatedAt:
		return -1
	case a.CreatedAt > b.CreatedAt:
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

// Sort orders envelopes in place per Compare.
func Sort(envs []Envelope) {
	slices.SortFunc(envs, Compare)
}

// Newest returns the newest envelope per Compare and false if envs is empty.
func Newest(envs []Envelope) (Envelope, bool) {
	if len(envs) == 0 {
		return Envelope{}, false
	}
	return slices.MaxFunc(envs, Compare), true
}
