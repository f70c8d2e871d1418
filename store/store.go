// Package store defines the persistence contract used by the queue
// engine. It mirrors the teacher queue's split of Pusher/Puller/Observer
// interfaces, expanded to the richer Store surface a durable
// multi-project pipeline engine needs: atomic claim with per-project
// exclusion, lease lifecycle transitions, dedupe-aware insert, filtered
// listing and lease-expiry recovery.
//
// Store implementations (see store/sql) are never composed by external
// code; all mutating paths go through the operations declared here.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq/job"
)

var (
	// ErrDuplicateDedupe is returned by InsertJob when a row with the
	// same (dedupe_key, dedupe_active) already exists. Callers should
	// fetch and return the existing row, making Enqueue idempotent.
	ErrDuplicateDedupe = errors.New("store: duplicate dedupe key")

	// ErrJobNotFound is returned when an operation references a job id
	// that does not exist.
	ErrJobNotFound = errors.New("store: job not found")

	// ErrNotTerminal is returned by operations that require a job to be
	// in a terminal state (DeleteJob, DeleteJobsByState, Clean-style
	// retention) but found it Queued or Running.
	ErrNotTerminal = errors.New("store: job is not in a terminal state")
)

// Filters narrows ListJobs/CountJobs. Zero values mean "no filter" for
// that field. Query matches substrings of Payload (as stored text) or
// LastError.
type Filters struct {
	State            job.State
	Type             job.Type
	ProjectID        *uuid.UUID
	DedupeKey        string
	DedupeActiveOnly bool
	Query            string
}

// Enqueuer is the write-side entry point of the store.
type Enqueuer interface {
	// InsertJob persists a new Queued job. If j.DedupeKey is non-empty
	// and an active job with the same key exists, InsertJob returns
	// ErrDuplicateDedupe and the caller must fetch the existing row
	// itself (via ListJobs filtered by DedupeKey with DedupeActiveOnly)
	// to return it from Enqueue.
	InsertJob(ctx context.Context, j *job.Job) error
}

// Claimer atomically selects and leases the next eligible job.
type Claimer interface {
	// AtomicClaim selects the highest-priority eligible queued job
	// (ordered priority DESC, run_at ASC, created_at ASC) and leases it
	// to workerID for leaseDuration, incrementing Attempts. Eligibility
	// requires State == Queued, RunAt <= now, Attempts < MaxAttempts,
	// the lease expired or absent, and per-project exclusion (no other
	// Running job shares the same non-nil ProjectID).
	//
	// AtomicClaim returns (nil, nil) when nothing is eligible; it never
	// errors on logical emptiness.
	AtomicClaim(ctx context.Context, now time.Time, workerID string, leaseDuration time.Duration) (*job.Job, error)
}

// Lifecycle holds the mutations a worker performs on a job it has
// claimed. Every operation is scoped by (id, workerID) and silently
// no-ops if the lease no longer belongs to workerID, so a stale worker
// recovered out from under by RecoveryLoop can never clobber the job a
// fresh claimant is now processing.
type Lifecycle interface {
	// UpdateLeaseExpiry extends the lease. Returns whether a row was
	// affected (false means the lease was already lost).
	UpdateLeaseExpiry(ctx context.Context, id uuid.UUID, workerID string, newExpiry time.Time) (bool, error)

	// TransitionToTerminal moves the job to Succeeded, Failed or
	// Cancelled, clearing the lease and DedupeActive. lastError is
	// stored verbatim (may be empty for Succeeded/Cancelled).
	TransitionToTerminal(ctx context.Context, id uuid.UUID, workerID string, state job.State, lastError string) (bool, error)

	// TransitionToQueued moves the job back to Queued with a new RunAt.
	// When preserveAttempts is true (the Reschedule case), Attempts is
	// decremented by one to compensate for the increment Claim applied,
	// so polling does not consume retry budget; lastError is left
	// untouched. When false (the Retry case), Attempts is kept as-is
	// and lastError is recorded. newPayload replaces the stored payload
	// when non-nil, letting a wait handler persist reschedule
	// bookkeeping (e.g. an attempt counter embedded in its payload)
	// across the claim/reschedule cycle; pass nil to leave it
	// unchanged.
	TransitionToQueued(ctx context.Context, id uuid.UUID, workerID string, newRunAt time.Time, preserveAttempts bool, lastError string, newPayload json.RawMessage) (bool, error)

	// RequestCancel sets CancelRequestedAt without touching State. It is
	// observed cooperatively by a running handler's next check.
	RequestCancel(ctx context.Context, id uuid.UUID) error

	// CancelQueued transitions Queued -> Cancelled directly. It is a
	// no-op (returns false, nil) if the job is not currently Queued.
	CancelQueued(ctx context.Context, id uuid.UUID) (bool, error)
}

// Observer provides read-only access to job state. It never mutates a
// job and is safe to call from admin tooling concurrently with workers.
type Observer interface {
	// GetJob returns the job identified by id, or (nil, nil) if absent.
	GetJob(ctx context.Context, id uuid.UUID) (*job.Job, error)

	// ListJobs returns up to limit jobs matching filters, offset for
	// pagination, ordered by CreatedAt descending.
	ListJobs(ctx context.Context, filters Filters, limit, offset int) ([]*job.Job, error)

	// CountJobs returns the number of jobs matching filters.
	CountJobs(ctx context.Context, filters Filters) (int64, error)
}

// Recovery sweeps leases that have lapsed, returning running jobs to
// Queued without touching Attempts or LastError. It is invoked
// periodically by RecoveryLoop and must be idempotent: calling it twice
// in immediate succession has the same effect as calling it once.
type Recovery interface {
	ExpireLeases(ctx context.Context, now time.Time) (int64, error)
}

// Admin groups the bulk/administrative mutations that don't fit the
// worker-facing Lifecycle contract: forced unlock, direct deletion and
// queue-wide settings.
type Admin interface {
	// DeleteJob removes a row, but only when it is in a terminal state.
	// Returns ErrNotTerminal otherwise, ErrJobNotFound if absent.
	DeleteJob(ctx context.Context, id uuid.UUID) error

	// DeleteJobsByState bulk-deletes jobs in a terminal state, returning
	// the number of rows removed. Non-terminal states are rejected with
	// ErrNotTerminal.
	DeleteJobsByState(ctx context.Context, state job.State) (int64, error)

	// RunNow sets RunAt to now for a Queued job. No-op if the job is not
	// Queued.
	RunNow(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// ForceUnlock moves a job of any state to Failed with a synthetic
	// error message, clearing its lease unconditionally. It is an admin
	// escape hatch and does not check lease ownership.
	ForceUnlock(ctx context.Context, id uuid.UUID, now time.Time, reason string) error

	// GetSettings returns the current (paused, concurrency) settings.
	GetSettings(ctx context.Context) (*Settings, error)

	// SetPaused updates the paused flag.
	SetPaused(ctx context.Context, paused bool) error

	// SetConcurrency updates the configured concurrency.
	SetConcurrency(ctx context.Context, concurrency int) error
}

// Settings is the QueueSettings singleton record.
type Settings struct {
	Paused      bool
	Concurrency int
}

// Store is the full persistence contract the engine depends on. A
// concrete backend (store/sql) implements every interface on a single
// type backed by one database handle.
type Store interface {
	Enqueuer
	Claimer
	Lifecycle
	Observer
	Recovery
	Admin
}
