// Package kv is a key-value store layered on a relay transport.
//
// Every write to a key is an independent, encrypted, signed record
// (envelope kind 9215) tagged with the key. The full history of a key is the
// union of those records and the records embedded in the key's live snapshot
// (kind 39215). When the number of individual records exceeds the configured
// threshold, a read compacts them into a new snapshot and requests deletion
// of the originals.
//
// The store assumes one writer per key at a time. There is no locking: a
// write racing a compaction may be lost.
//
// Operations on top of histories live in StoreEvent and ReadEvent, which
// render and fold payloads through an operation.Contract.
package kv
