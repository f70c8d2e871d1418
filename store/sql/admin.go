package sql

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq/job"
	"github.com/pablopunk/doceq/store"
	"github.com/uptrace/bun"
)

// Admin implements store.Admin using a SQL backend. It absorbs the
// retention/cleanup role a dedicated cleaner component would otherwise
// play: DeleteJobsByState is the bulk, terminal-state-only deletion
// path, and ForceUnlock is the escape hatch for a job stuck behind a
// lease no RecoveryLoop sweep will ever reclaim (for instance one
// whose lock_expires_at was set far in the future by a bug).
type Admin struct {
	db *bun.DB
}

// NewAdmin creates a new SQL-backed Admin.
func NewAdmin(db *bun.DB) *Admin {
	return &Admin{db: db}
}

// DeleteJob removes a single job, refusing to delete one that has not
// reached a terminal state.
func (a *Admin) DeleteJob(ctx context.Context, id uuid.UUID) error {
	j, err := (&Observer{db: a.db}).GetJob(ctx, id)
	if err != nil {
		return err
	}
	if j == nil {
		return store.ErrJobNotFound
	}
	if !j.Terminal() {
		return store.ErrNotTerminal
	}
	_, err = a.db.NewDelete().
		Model((*jobModel)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// DeleteJobsByState bulk-deletes every job in state, which must be a
// terminal state.
func (a *Admin) DeleteJobsByState(ctx context.Context, state job.State) (int64, error) {
	if !state.Terminal() {
		return 0, store.ErrNotTerminal
	}
	res, err := a.db.NewDelete().
		Model((*jobModel)(nil)).
		Where("state = ?", state.String()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return getAffected(res), nil
}

// RunNow sets run_at to now for a Queued job, making it immediately
// eligible for claim. It is a no-op for any other state.
func (a *Admin) RunNow(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res, err := a.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("run_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("state = ?", job.Queued.String()).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return isAffected(res), nil
}

// ForceUnlock moves a job of any state to Failed with a synthetic
// last_error, unconditionally clearing its lease. Unlike Lifecycle's
// transitions, it does not check locked_by: it is meant for operator
// intervention on a job Recovery could never reach on its own.
func (a *Admin) ForceUnlock(ctx context.Context, id uuid.UUID, now time.Time, reason string) error {
	_, err := a.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Failed.String()).
		Set("locked_at = NULL").
		Set("lock_expires_at = NULL").
		Set("locked_by = ''").
		Set("dedupe_active = FALSE").
		Set("last_error = ?", reason).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
