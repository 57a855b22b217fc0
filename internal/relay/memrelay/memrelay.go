// Package memrelay is an in-process relay. It backs tests, scenarios and
// mem:// endpoints.
package memrelay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/relaykv/internal/envelope"
	"github.com/roach88/relaykv/internal/relay"
)

// Relay keeps envelopes in memory. It is safe for concurrent use.
type Relay struct {
	url string

	mu          sync.RWMutex
	events      map[string]envelope.Envelope
	deleted     map[string]string // envelope id -> author that deleted it
	replaceable map[string]string // replaceable slot -> envelope id
}

var _ relay.Relay = (*Relay)(nil)

// New creates an empty relay.
func New(name string) *Relay {
	return &Relay{
		url:         "mem://" + name,
		events:      make(map[string]envelope.Envelope),
		deleted:     make(map[string]string),
		replaceable: make(map[string]string),
	}
}

var (
	sharedMu sync.Mutex
	shared   = map[string]*Relay{}
)

// Shared returns the process-wide relay registered under name, creating it
// on first use. Every mem://name endpoint in a process reaches the same data.
func Shared(name string) *Relay {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	r, ok := shared[name]
	if !ok {
		r = New(name)
		shared[name] = r
	}
	return r
}

// URL implements relay.Relay.
func (r *Relay) URL() string { return r.url }

// Publish implements relay.Relay.
func (r *Relay) Publish(ctx context.Context, env envelope.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := relay.Check(env); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[env.ID]; ok {
		return nil
	}
	if author, ok := r.deleted[env.ID]; ok && author == env.Pubkey {
		return nil
	}

	if slot, ok := relay.ReplaceableKey(env); ok {
		if prevID, exists := r.replaceable[slot]; exists {
			prev := r.events[prevID]
			if envelope.Compare(prev, env) > 0 {
				slog.Debug("dropping superseded replaceable envelope", "relay", r.url, "id", env.ID)
				return nil
			}
			delete(r.events, prevID)
		}
		r.replaceable[slot] = env.ID
	}

	for _, id := range relay.DeletionTargets(env) {
		target, ok := r.events[id]
		if ok && target.Pubkey != env.Pubkey {
			continue
		}
		r.deleted[id] = env.Pubkey
		if ok {
			delete(r.events, id)
			if slot, isRepl := relay.ReplaceableKey(target); isRepl && r.replaceable[slot] == id {
				delete(r.replaceable, slot)
			}
		}
	}

	r.events[env.ID] = env
	return nil
}

// Query implements relay.Relay.
func (r *Relay) Query(ctx context.Context, filter envelope.Filter) ([]envelope.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	all := make([]envelope.Envelope, 0, len(r.events))
	for _, e := range r.events {
		all = append(all, e)
	}
	r.mu.RUnlock()

	return filter.Select(all), nil
}

// Len returns the number of stored envelopes.
func (r *Relay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// Close implements relay.Relay. Memory relays hold no resources.
func (r *Relay) Close() error { return nil }
