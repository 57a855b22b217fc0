package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/relaykv/internal/relay"
	"github.com/roach88/relaykv/internal/relay/memrelay"
	"github.com/roach88/relaykv/internal/relay/redisrelay"
	"github.com/roach88/relaykv/internal/relay/sqliterelay"
	"github.com/roach88/relaykv/internal/relay/wsrelay"
)

// Dial opens a single relay from its endpoint URL.
//
// Supported schemes:
//   - mem://name        process-local memory relay
//   - sqlite://path     SQLite relay (also file:path)
//   - redis://host:port Redis relay
//   - ws://, wss://     remote relay over websocket
func Dial(ctx context.Context, endpoint string) (relay.Relay, error) {
	switch {
	case strings.HasPrefix(endpoint, "mem://"):
		return memrelay.Shared(strings.TrimPrefix(endpoint, "mem://")), nil
	case strings.HasPrefix(endpoint, "sqlite://"):
		return sqliterelay.Open(strings.TrimPrefix(endpoint, "sqlite://"))
	case strings.HasPrefix(endpoint, "file:"):
		return sqliterelay.Open(strings.TrimPrefix(endpoint, "file:"))
	case strings.HasPrefix(endpoint, "redis://"), strings.HasPrefix(endpoint, "rediss://"):
		return redisrelay.Open(ctx, endpoint)
	case strings.HasPrefix(endpoint, "ws://"), strings.HasPrefix(endpoint, "wss://"):
		return wsrelay.Dial(ctx, endpoint)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, endpoint)
	}
}

// Connect dials every endpoint and returns a pool of the relays that
// connected. Unreachable relays are logged and skipped; Connect fails when
// endpoints is empty, when an endpoint URL is not supported, or when no
// relay connects.
func Connect(ctx context.Context, endpoints []string, opts ...PoolOption) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoRelays
	}

	probe := &Pool{}
	for _, opt := range opts {
		opt(probe)
	}
	logger := probe.logger

	var relays []relay.Relay
	var lastErr error
	for _, endpoint := range endpoints {
		r, err := Dial(ctx, endpoint)
		if err != nil {
			if errors.Is(err, ErrUnsupportedURL) {
				closeAll(relays)
				return nil, err
			}
			if logger != nil {
				logger.Warn("relay unreachable", "relay", endpoint, "error", err)
			}
			lastErr = fmt.Errorf("%s: %w", endpoint, err)
			continue
		}
		relays = append(relays, r)
	}
	if len(relays) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoRelays, lastErr)
	}
	return NewPool(relays, opts...)
}

func closeAll(relays []relay.Relay) {
	for _, r := range relays {
		_ = r.Close()
	}
}
