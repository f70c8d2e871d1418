package sql

import (
	"context"
	"time"

	"github.com/pablopunk/doceq/job"
	"github.com/uptrace/bun"
)

// Claimer implements store.Claimer using a SQL backend.
type Claimer struct {
	db *bun.DB
}

// NewClaimer creates a new SQL-backed Claimer.
func NewClaimer(db *bun.DB) *Claimer {
	return &Claimer{db: db}
}

// AtomicClaim selects the single highest-priority eligible job and
// leases it in one UPDATE ... WHERE id IN (subquery) RETURNING *
// statement, so selection and state transition never race across
// concurrent callers.
//
// The subquery enforces:
//   - state = 'queued'
//   - run_at <= now
//   - attempts < max_attempts
//   - no Running job shares the same non-null project_id (per-project
//     mutual exclusion, advisory: it is a selection predicate, not a
//     database lock)
//
// ordered by priority DESC, run_at ASC, created_at ASC, limited to 1.
func (c *Claimer) AtomicClaim(ctx context.Context, now time.Time, workerID string, leaseDuration time.Duration) (*job.Job, error) {
	expires := now.Add(leaseDuration)
	subQuery := c.db.NewSelect().
		Model((*jobModel)(nil)).
		Column("id").
		Where("state = ?", job.Queued.String()).
		Where("run_at <= ?", now).
		Where("attempts < max_attempts").
		Where(`j.project_id IS NULL OR NOT EXISTS (
			SELECT 1 FROM jobs AS running
			WHERE running.project_id = j.project_id
			AND running.state = ?
		)`, job.Running.String()).
		Order("priority DESC", "run_at ASC", "created_at ASC").
		Limit(1)

	var rows []*jobModel
	_, err := c.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Running.String()).
		Set("attempts = attempts + 1").
		Set("locked_at = ?", now).
		Set("lock_expires_at = ?", expires).
		Set("locked_by = ?", workerID).
		Set("updated_at = ?", now).
		Where("id IN (?)", subQuery).
		Returning("*").
		Exec(ctx, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toJob()
}
