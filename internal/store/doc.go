// Package store is the durable state store of the registration engine.
//
// Two records are kept under fixed keys:
//   - "mode": the orchestration Mode, readable on its own at launch so an
//     in-progress number change resumes even when the rest is corrupt
//   - "state": the versioned PersistedState
//
// All writes to "state" go through Update, a transactional
// read-modify-write. Backends:
//   - SQLite (default): WAL mode, single writer, golang-migrate schema
//   - Redis: WATCH/MULTI optimistic transactions
//   - Memory: for tests and dry runs
//
// Every persisted mutation is stamped with a monotonic ULID revision.
package store
