// Package kv provides the local key-value string store used to persist user
// state such as the favorites list.
//
// Four backends implement [Store]:
//
//   - [Memory]: process-local, for tests and ephemeral sessions
//   - [File]: a single JSON object file, rewritten atomically on every Set
//   - [Bolt]: a go.etcd.io/bbolt database with one bucket
//   - [SQLite]: a modernc.org/sqlite database with one table
//
// [Open] selects a backend by name, which is how the CLI wires the store from
// configuration.
//
// # Semantics
//
// Values are opaque strings. Get on a missing key reports ok=false with no
// error. Set overwrites. There is no merge across processes: when two
// processes write the same key the last write wins.
//
// [GetJSON] and [SetJSON] are helpers for callers that store structured
// values.
package kv
