package kv

import (
	"log/slog"

	"github.com/roach88/relaykv/internal/transport"
)

// DefaultAggregateCount is the number of individual records a key may hold
// before a read compacts them.
const DefaultAggregateCount = 1000

// QueryOptions controls a history read.
type QueryOptions struct {
	// Decrypt returns plaintext contents. Without it contents are returned
	// as stored.
	Decrypt bool

	// AggregateCount is the compaction threshold. A read that finds more
	// individual records than this compacts the key. Zero or less disables
	// compaction for a ReadHistory call; as a DB default (WithQueryOptions)
	// it is replaced by DefaultAggregateCount.
	AggregateCount int
}

// DefaultQueryOptions returns Decrypt=true and DefaultAggregateCount.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{Decrypt: true, AggregateCount: DefaultAggregateCount}
}

// Option configures a DB.
type Option func(*DB)

// WithQueryOptions sets the options used by Read and ReadEvent. A
// non-positive AggregateCount falls back to DefaultAggregateCount.
func WithQueryOptions(opts QueryOptions) Option {
	return func(db *DB) {
		db.query = opts
	}
}

// WithLogger sets the DB's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(db *DB) {
		if logger != nil {
			db.logger = logger
		}
	}
}

// WithClock sets the timestamp source for new records.
func WithClock(clock Clock) Option {
	return func(db *DB) {
		if clock != nil {
			db.clock = clock
		}
	}
}

// WithFetchOptions sets the timeout and exit policy of every fetch.
func WithFetchOptions(opts transport.FetchOptions) Option {
	return func(db *DB) {
		db.fetch = opts
	}
}
