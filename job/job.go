package job

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job represents one unit of durable work tracked by the queue store.
//
// CreatedAt records when the job was first enqueued.
// UpdatedAt records the last state transition or modification.
//
// State is the current lifecycle state (see State).
// ProjectID, when set, enforces per-project mutual exclusion: at most
// one job with a given ProjectID may be Running at any instant.
// Attempts counts how many times the job has been claimed.
// MaxAttempts bounds Attempts; claim fails once Attempts >= MaxAttempts.
// LockedAt, LockExpiresAt and LockedBy together form the lease triple;
// all three are non-nil/non-empty iff State == Running.
// RunAt is the earliest instant at which the job becomes eligible for
// claim.
// DedupeKey, when non-empty and DedupeActive is true, prevents a second
// active job with the same key from being enqueued.
// CancelRequestedAt records a cooperative cancellation request;
// CancelledAt is set once the job actually reaches State == Cancelled.
// LastError holds a short diagnostic string from the most recent
// failure or retry.
//
// Job values returned by a store are point-in-time snapshots. Mutating
// them directly has no effect on persisted state.
type Job struct {
	ID        uuid.UUID
	Type      Type
	State     State
	ProjectID *uuid.UUID
	Payload   json.RawMessage
	Priority  int

	Attempts      uint32
	MaxAttempts   uint32
	RunAt         time.Time
	LockedAt      *time.Time
	LockExpiresAt *time.Time
	LockedBy      string

	DedupeKey    string
	DedupeActive bool

	CancelRequestedAt *time.Time
	CancelledAt       *time.Time

	LastError string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Leased reports whether the job currently holds a lease, per invariant 1
// of the data model (State == Running iff the lease triple is non-empty).
func (j *Job) Leased() bool {
	return j.State == Running && j.LockedAt != nil && j.LockExpiresAt != nil && j.LockedBy != ""
}

// Terminal reports whether the job has reached a sticky terminal state.
func (j *Job) Terminal() bool {
	switch j.State {
	case Succeeded, Failed, Cancelled:
		return true
	default:
		return false
	}
}
