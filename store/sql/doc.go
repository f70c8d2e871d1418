// Package sql provides a bun-based implementation of the store
// interfaces (github.com/pablopunk/doceq/store) backed by a relational
// database.
//
// # Overview
//
// The SQL backend provides:
//
//   - durable persistence of jobs
//   - atomic claim with per-project exclusion via UPDATE ... RETURNING
//   - visibility timeout (lease) semantics
//   - dedupe-key conflict detection on insert
//   - a singleton queue_settings row for paused/concurrency state
//
// It is compatible with SQLite, PostgreSQL and other bun-supported
// dialects, subject to their transactional guarantees, with one
// exception: InsertJob recognizes a dedupe conflict only from SQLite's
// unique-constraint error text, so on other dialects a duplicate
// dedupe key surfaces as the driver's own error rather than
// store.ErrDuplicateDedupe. The reference
// deployment (cmd/doceq-worker) uses modernc.org/sqlite, a pure-Go
// driver requiring no cgo.
//
// # Concurrency Model
//
// AtomicClaim is implemented as a single UPDATE statement against a
// subquery selecting one eligible row, avoiding a race between
// selection and state transition. Lifecycle transitions are scoped by
// (id, locked_by) so a worker whose lease already lapsed cannot
// clobber a job a new claimant now owns; RowsAffected distinguishes a
// successful transition from a lost lease.
//
// SQLite users must enable WAL mode and an appropriate busy_timeout;
// Open does this for the embedded deployment.
//
// # Schema
//
// The backend expects a "jobs" table corresponding to jobModel, a
// "queue_settings" table holding a single settings row, and the
// indexes declared in init.go: (state, run_at), (state,
// lock_expires_at), (project_id, state), a partial unique index on
// dedupe_key where dedupe_active, and (state, updated_at).
//
// InitDB is idempotent and runs inside a transaction. It does not
// perform destructive migrations; schema evolution is handled
// externally.
//
// # Database Lifecycle
//
// This package does not manage connection pooling or migrations beyond
// InitDB. The caller is responsible for creating and configuring
// *bun.DB (Open does this for SQLite) and running InitDB before use.
//
// # Limitations
//
// The SQL backend uses state and timestamp columns to implement lease
// semantics; it does not use lease tokens or optimistic locking
// versions. Exactly-once processing is not guaranteed: delivery
// semantics remain at-least-once.
package sql
