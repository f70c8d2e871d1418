package sql

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pablopunk/doceq/job"
	"github.com/pablopunk/doceq/store"
	"github.com/uptrace/bun"
)

// Enqueuer implements store.Enqueuer using a SQL backend.
type Enqueuer struct {
	db *bun.DB
}

// NewEnqueuer creates a new SQL-backed Enqueuer. The provided *bun.DB
// must be connected and have had InitDB run against it.
func NewEnqueuer(db *bun.DB) *Enqueuer {
	return &Enqueuer{db: db}
}

// InsertJob persists j in the Queued state. If j.RunAt is zero, it
// defaults to now. The defaults for RunAt, State, MaxAttempts and
// DedupeActive are written into j before the insert is attempted. If
// j.DedupeKey is set and an active job already holds that key, the
// unique partial index rejects the insert and InsertJob returns
// store.ErrDuplicateDedupe, leaving j.CreatedAt and j.UpdatedAt unset.
func (e *Enqueuer) InsertJob(ctx context.Context, j *job.Job) error {
	if j.ID == [16]byte{} {
		return errors.New("sql: job id must be set before insert")
	}
	if j.RunAt.IsZero() {
		j.RunAt = time.Now()
	}
	if j.State == job.Unknown {
		j.State = job.Queued
	}
	if j.MaxAttempts == 0 {
		j.MaxAttempts = 1
	}
	if j.DedupeKey != "" {
		j.DedupeActive = true
	}
	model := fromJob(j)
	now := time.Now()
	model.CreatedAt = now
	model.UpdatedAt = now
	_, err := e.db.NewInsert().Model(model).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateDedupe
		}
		return err
	}
	j.CreatedAt = now
	j.UpdatedAt = now
	return nil
}

// isUniqueViolation recognizes the error shapes SQLite and the
// modernc.org/sqlite driver use to report a unique constraint failure,
// since there is no portable sentinel across drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}
