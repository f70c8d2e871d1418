package sql

import (
	"context"
	stdsql "database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq/job"
	"github.com/pablopunk/doceq/store"
	"github.com/uptrace/bun"
)

// Observer implements store.Observer using a SQL backend.
//
// Observer provides read-only access to job state and must not modify
// job records. Returned Job values are authoritative snapshots of
// storage state at query time.
type Observer struct {
	db *bun.DB
}

// NewObserver creates a new SQL-backed Observer.
func NewObserver(db *bun.DB) *Observer {
	return &Observer{db: db}
}

// GetJob retrieves a job by its identifier, returning (nil, nil) if
// absent.
func (o *Observer) GetJob(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	var model jobModel
	err := o.db.NewSelect().
		Model(&model).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return model.toJob()
}

func applyFilters(query *bun.SelectQuery, f store.Filters) *bun.SelectQuery {
	if f.State != job.Unknown {
		query = query.Where("state = ?", f.State.String())
	}
	if f.Type != "" {
		query = query.Where("type = ?", string(f.Type))
	}
	if f.ProjectID != nil {
		query = query.Where("project_id = ?", *f.ProjectID)
	}
	if f.DedupeKey != "" {
		query = query.Where("dedupe_key = ?", f.DedupeKey)
	}
	if f.DedupeActiveOnly {
		query = query.Where("dedupe_active = TRUE")
	}
	if f.Query != "" {
		like := "%" + f.Query + "%"
		query = query.Where("(payload LIKE ? OR last_error LIKE ?)", like, like)
	}
	return query
}

// ListJobs returns up to limit jobs matching filters, offset for
// pagination, ordered by creation time descending (newest first).
func (o *Observer) ListJobs(ctx context.Context, filters store.Filters, limit, offset int) ([]*job.Job, error) {
	var models []*jobModel
	query := applyFilters(o.db.NewSelect().Model(&models), filters).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	jobs := make([]*job.Job, 0, len(models))
	for _, m := range models {
		j, err := m.toJob()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// CountJobs returns the number of jobs matching filters.
func (o *Observer) CountJobs(ctx context.Context, filters store.Filters) (int64, error) {
	query := applyFilters(o.db.NewSelect().Model((*jobModel)(nil)), filters)
	count, err := query.Count(ctx)
	if err != nil {
		return 0, err
	}
	return int64(count), nil
}
