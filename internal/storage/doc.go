// Package storage provides the embedded key-value stores of CatPanel.
//
// Every backend implements the Store contract:
//
//   - BoltStore: memory-mapped B+tree (boltdb), single writer, many readers
//   - BadgerStore: log-structured store with append-only value log segments
//   - SQLiteStore: page-based sqlite table with zstd compressed values
//
// A store is opened from a logical root path. Each backend appends its own
// extension (".bolt", ".badger", ".sqlite") so switching backends for the
// same root never reads another backend's files. DefaultBackend is chosen
// at build time: bolt on unix, sqlite elsewhere.
//
// All stores are safe for concurrent use and commit every write before
// returning.
package storage
