// Package sqlite provides the SQLite-backed implementation of the
// persistence ports: the vector index store, the document checkpoint
// store, and the seen-hash store, all through a single database
// connection.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation
// that requires no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in
// the migrations/ directory. Each migration is a pair of .up.sql and
// .down.sql files.
//
// Vectors are stored inline with their chunk text and metadata as
// little-endian float32 blobs, so every committed row is a complete
// index entry: a crash mid-run never leaves a queryable entry missing
// its vector. The index dimension is fixed by the first upsert and
// recorded in the index_meta table; later vectors of a different length
// are rejected.
//
// # Data Location
//
// By default, the database is stored at ~/.corpus/data/index.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode.
package sqlite
