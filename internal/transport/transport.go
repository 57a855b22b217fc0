// Package transport connects the store to a set of relays.
//
// A Pool fans every publish out to all relays and succeeds when at least one
// accepts. Fetches query every relay concurrently and merge the answers by
// envelope ID; the exit policy decides whether to wait for all relays or to
// return the first answer.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/relaykv/internal/envelope"
)

// Transport is the surface the store consumes.
type Transport interface {
	Publish(ctx context.Context, env envelope.Envelope) (string, error)
	Fetch(ctx context.Context, filter envelope.Filter, opts FetchOptions) ([]envelope.Envelope, error)
}

// Errors returned by the pool.
var (
	ErrNoRelays       = errors.New("no relays configured")
	ErrPublishFailed  = errors.New("no relay accepted the envelope")
	ErrFetchFailed    = errors.New("no relay answered the query")
	ErrUnsupportedURL = errors.New("unsupported relay url")
)

// ExitPolicy controls how many relays a fetch waits for.
type ExitPolicy int

const (
	// ExitAll waits for every relay to answer or fail.
	ExitAll ExitPolicy = iota
	// ExitFirst returns as soon as one relay answers.
	ExitFirst
)

// String implements fmt.Stringer.
func (p ExitPolicy) String() string {
	switch p {
	case ExitAll:
		return "all"
	case ExitFirst:
		return "first"
	default:
		return fmt.Sprintf("ExitPolicy(%d)", int(p))
	}
}

// ParseExitPolicy parses "all" or "first".
func ParseExitPolicy(s string) (ExitPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return ExitAll, nil
	case "first":
		return ExitFirst, nil
	default:
		return ExitAll, fmt.Errorf("unknown exit policy %q: must be all or first", s)
	}
}

// FetchOptions bounds a single fetch.
type FetchOptions struct {
	// Timeout caps the whole fetch. Zero means no limit beyond ctx.
	Timeout time.Duration
	Exit    ExitPolicy
}
