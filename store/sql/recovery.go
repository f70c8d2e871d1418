package sql

import (
	"context"
	"time"

	"github.com/pablopunk/doceq/job"
	"github.com/uptrace/bun"
)

// Recovery implements store.Recovery using a SQL backend.
type Recovery struct {
	db *bun.DB
}

// NewRecovery creates a new SQL-backed Recovery.
func NewRecovery(db *bun.DB) *Recovery {
	return &Recovery{db: db}
}

// ExpireLeases returns every Running job whose lease has lapsed back
// to Queued, leaving Attempts and LastError untouched: the attempt the
// crashed or stalled worker claimed stays counted, and the next claim
// increments Attempts again. Calling ExpireLeases twice in immediate succession
// has the same effect as calling it once, since the second call
// matches zero rows.
func (r *Recovery) ExpireLeases(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Queued.String()).
		Set("run_at = ?", now).
		Set("locked_at = NULL").
		Set("lock_expires_at = NULL").
		Set("locked_by = ''").
		Set("updated_at = ?", now).
		Where("state = ?", job.Running.String()).
		Where("lock_expires_at < ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return getAffected(res), nil
}
