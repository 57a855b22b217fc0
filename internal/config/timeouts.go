package config

import "time"

// DefaultFetchTimeout caps a single fetch across the relay pool.
const DefaultFetchTimeout = 10 * time.Second

// DialTimeout caps connecting to one relay.
const DialTimeout = 5 * time.Second

// ReadHeaderTimeout limits how long the relay server waits for request
// headers.
const ReadHeaderTimeout = 5 * time.Second

// ShutdownTimeout limits how long the relay server waits for in-flight
// connections during shutdown.
const ShutdownTimeout = 5 * time.Second
