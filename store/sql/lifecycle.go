package sql

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq/job"
	"github.com/uptrace/bun"
)

// Lifecycle implements store.Lifecycle using a SQL backend.
type Lifecycle struct {
	db *bun.DB
}

// NewLifecycle creates a new SQL-backed Lifecycle.
func NewLifecycle(db *bun.DB) *Lifecycle {
	return &Lifecycle{db: db}
}

// UpdateLeaseExpiry extends a Running job's lease. It affects no rows
// (returns false, nil) if the job is no longer Running under workerID,
// meaning the lease was already recovered by another worker.
func (l *Lifecycle) UpdateLeaseExpiry(ctx context.Context, id uuid.UUID, workerID string, newExpiry time.Time) (bool, error) {
	res, err := l.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("lock_expires_at = ?", newExpiry).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("state = ?", job.Running.String()).
		Where("locked_by = ?", workerID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return isAffected(res), nil
}

// TransitionToTerminal moves a Running job owned by workerID to a
// terminal state, clearing the lease triple and dedupe_active so a
// later Enqueue with the same dedupe key is accepted.
func (l *Lifecycle) TransitionToTerminal(ctx context.Context, id uuid.UUID, workerID string, state job.State, lastError string) (bool, error) {
	now := time.Now()
	update := l.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", state.String()).
		Set("locked_at = NULL").
		Set("lock_expires_at = NULL").
		Set("locked_by = ''").
		Set("dedupe_active = FALSE").
		Set("last_error = ?", lastError).
		Set("updated_at = ?", now)
	if state == job.Cancelled {
		update = update.Set("cancelled_at = ?", now)
	}
	res, err := update.
		Where("id = ?", id).
		Where("state = ?", job.Running.String()).
		Where("locked_by = ?", workerID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return isAffected(res), nil
}

// TransitionToQueued returns a Running job owned by workerID to
// Queued. When preserveAttempts is true (Reschedule), Attempts is
// decremented to undo the increment AtomicClaim applied, so the
// retry budget is not consumed; lastError is left untouched. When
// false (Retry), lastError is recorded and Attempts is kept as-is.
func (l *Lifecycle) TransitionToQueued(ctx context.Context, id uuid.UUID, workerID string, newRunAt time.Time, preserveAttempts bool, lastError string, newPayload json.RawMessage) (bool, error) {
	update := l.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Queued.String()).
		Set("run_at = ?", newRunAt).
		Set("locked_at = NULL").
		Set("lock_expires_at = NULL").
		Set("locked_by = ''").
		Set("updated_at = ?", time.Now())
	if preserveAttempts {
		update = update.Set("attempts = attempts - 1")
	} else {
		update = update.Set("last_error = ?", lastError)
	}
	if newPayload != nil {
		update = update.Set("payload = ?", string(newPayload))
	}
	res, err := update.
		Where("id = ?", id).
		Where("state = ?", job.Running.String()).
		Where("locked_by = ?", workerID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return isAffected(res), nil
}

// RequestCancel marks a cooperative cancellation request. It does not
// check the job's current state: a handler polling
// ThrowIfCancelRequested will observe it on its next check regardless
// of exactly when the request lands relative to dispatch.
func (l *Lifecycle) RequestCancel(ctx context.Context, id uuid.UUID) error {
	_, err := l.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("cancel_requested_at = ?", time.Now()).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("cancel_requested_at IS NULL").
		Exec(ctx)
	return err
}

// CancelQueued transitions a Queued job directly to Cancelled. It is a
// no-op if the job is not currently Queued (e.g. already Running or
// terminal), returning (false, nil) in that case.
func (l *Lifecycle) CancelQueued(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now()
	res, err := l.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Cancelled.String()).
		Set("cancelled_at = ?", now).
		Set("dedupe_active = FALSE").
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("state = ?", job.Queued.String()).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return isAffected(res), nil
}
