package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/relaykv/internal/envelope"
	"github.com/roach88/relaykv/internal/relay"
)

// Pool is a set of connected relays. It is safe for concurrent use.
type Pool struct {
	relays []relay.Relay
	logger *slog.Logger
}

var _ Transport = (*Pool)(nil)

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithLogger sets the pool's logger.
func WithLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPool wraps already connected relays.
func NewPool(relays []relay.Relay, opts ...PoolOption) (*Pool, error) {
	if len(relays) == 0 {
		return nil, ErrNoRelays
	}
	p := &Pool{relays: relays, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// URLs returns the relay URLs in pool order.
func (p *Pool) URLs() []string {
	urls := make([]string, len(p.relays))
	for i, r := range p.relays {
		urls[i] = r.URL()
	}
	return urls
}

// Publish sends env to every relay concurrently. It returns env.ID when at
// least one relay accepts it.
func (p *Pool) Publish(ctx context.Context, env envelope.Envelope) (string, error) {
	errs := make([]error, len(p.relays))
	var g errgroup.Group
	for i, r := range p.relays {
		g.Go(func() error {
			if err := r.Publish(ctx, env); err != nil {
				errs[i] = fmt.Errorf("%s: %w", r.URL(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		p.logger.Warn("relay rejected envelope", "id", env.ID, "kind", int(env.Kind), "error", err)
	}
	if accepted == 0 {
		return "", fmt.Errorf("%w: %w", ErrPublishFailed, errors.Join(errs...))
	}
	p.logger.Debug("envelope published", "id", env.ID, "kind", int(env.Kind), "accepted", accepted, "relays", len(p.relays))
	return env.ID, nil
}

type answer struct {
	url  string
	envs []envelope.Envelope
	err  error
}

// Fetch queries every relay and merges the answers by ID, in ascending
// (created_at, id) order. Envelopes that fail verification or do not match
// filter are dropped. It fails only when no relay answers.
func (p *Pool) Fetch(ctx context.Context, filter envelope.Filter, opts FetchOptions) ([]envelope.Envelope, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	answers := make(chan answer, len(p.relays))
	for _, r := range p.relays {
		go func() {
			envs, err := r.Query(ctx, filter)
			answers <- answer{url: r.URL(), envs: envs, err: err}
		}()
	}

	merged := make(map[string]envelope.Envelope)
	var errs []error
	answered := 0
	for range p.relays {
		a := <-answers
		if a.err != nil {
			p.logger.Warn("relay query failed", "relay", a.url, "error", a.err)
			errs = append(errs, fmt.Errorf("%s: %w", a.url, a.err))
			continue
		}
		answered++
		for _, e := range a.envs {
			if err := envelope.Verify(e); err != nil {
				p.logger.Warn("dropping unverifiable envelope", "relay", a.url, "id", e.ID, "error", err)
				continue
			}
			if !filter.Matches(e) {
				p.logger.Warn("dropping envelope outside filter", "relay", a.url, "id", e.ID)
				continue
			}
			merged[e.ID] = e
		}
		if opts.Exit == ExitFirst {
			break
		}
	}

	if answered == 0 {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, errors.Join(errs...))
	}

	out := make([]envelope.Envelope, 0, len(merged))
	for _, e := range merged {
		out = append(out, e)
	}
	// Relays apply the limit individually; re-apply it to the merged view.
	return envelope.Filter{Limit: filter.Limit}.Select(out), nil
}

// Close closes every relay in the pool.
func (p *Pool) Close() error {
	var errs []error
	for _, r := range p.relays {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.URL(), err))
		}
	}
	return errors.Join(errs...)
}
