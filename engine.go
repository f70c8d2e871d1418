package doceq

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq/job"
	"github.com/pablopunk/doceq/store"
)

// Engine is the administrative and enqueue-side facade over a Store.
// It is the surface an HTTP API or CLI talks to; Pool and RecoveryLoop
// talk to the Store directly.
type Engine struct {
	store store.Store
}

// NewEngine wraps st in an Engine facade.
func NewEngine(st store.Store) *Engine {
	return &Engine{store: st}
}

// Enqueue validates t's payload and inserts a new Queued job. If
// dedupeKey is non-empty and an active job already holds it, Enqueue
// returns the existing job instead of creating a duplicate, making
// repeated Enqueue calls for the same logical operation idempotent.
func (e *Engine) Enqueue(ctx context.Context, t job.Type, projectID *uuid.UUID, payload []byte, priority int, maxAttempts uint32, dedupeKey string, runAt time.Time) (*job.Job, error) {
	if err := job.ValidatePayload(t, payload); err != nil {
		return nil, err
	}
	j := &job.Job{
		ID:          uuid.New(),
		Type:        t,
		ProjectID:   projectID,
		Payload:     payload,
		Priority:    priority,
		MaxAttempts: maxAttempts,
		DedupeKey:   dedupeKey,
		RunAt:       runAt,
	}
	err := e.store.InsertJob(ctx, j)
	if err == nil {
		return j, nil
	}
	if errors.Is(err, store.ErrDuplicateDedupe) {
		return e.findActiveByDedupeKey(ctx, dedupeKey)
	}
	return nil, err
}

func (e *Engine) findActiveByDedupeKey(ctx context.Context, dedupeKey string) (*job.Job, error) {
	jobs, err := e.store.ListJobs(ctx, store.Filters{DedupeKey: dedupeKey, DedupeActiveOnly: true}, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, errors.New("doceq: duplicate dedupe key reported but no active job found")
	}
	return jobs[0], nil
}

// GetJob returns a job snapshot by id, or nil if not found.
func (e *Engine) GetJob(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	return e.store.GetJob(ctx, id)
}

// ListJobs lists jobs matching filters, paginated by limit/offset.
func (e *Engine) ListJobs(ctx context.Context, filters store.Filters, limit, offset int) ([]*job.Job, error) {
	return e.store.ListJobs(ctx, filters, limit, offset)
}

// CountJobs counts jobs matching filters.
func (e *Engine) CountJobs(ctx context.Context, filters store.Filters) (int64, error) {
	return e.store.CountJobs(ctx, filters)
}

// RequestCancel flags a job for cooperative cancellation; a running
// handler observes it on its next ThrowIfCancelRequested call.
func (e *Engine) RequestCancel(ctx context.Context, id uuid.UUID) error {
	return e.store.RequestCancel(ctx, id)
}

// CancelQueuedJob cancels a job that has not yet been claimed. It
// reports false if the job was not Queued (already running or
// terminal) when the cancellation was attempted.
func (e *Engine) CancelQueuedJob(ctx context.Context, id uuid.UUID) (bool, error) {
	return e.store.CancelQueued(ctx, id)
}

// RetryJob re-enqueues a copy of a terminal job under newID, preserving
// type, payload, priority, max attempts, project id and dedupe key. It
// returns store.ErrNotTerminal if the source job has not reached a
// terminal state, since a still-active job should not be duplicated.
func (e *Engine) RetryJob(ctx context.Context, id, newID uuid.UUID) (*job.Job, error) {
	source, err := e.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, store.ErrJobNotFound
	}
	if !source.Terminal() {
		return nil, store.ErrNotTerminal
	}
	clone := &job.Job{
		ID:          newID,
		Type:        source.Type,
		ProjectID:   source.ProjectID,
		Payload:     source.Payload,
		Priority:    source.Priority,
		MaxAttempts: source.MaxAttempts,
		DedupeKey:   source.DedupeKey,
		RunAt:       time.Now(),
	}
	if err := e.store.InsertJob(ctx, clone); err != nil {
		if errors.Is(err, store.ErrDuplicateDedupe) {
			return e.findActiveByDedupeKey(ctx, source.DedupeKey)
		}
		return nil, err
	}
	return clone, nil
}

// DeleteJob removes a single terminal job.
func (e *Engine) DeleteJob(ctx context.Context, id uuid.UUID) error {
	return e.store.DeleteJob(ctx, id)
}

// DeleteJobsByState bulk-deletes jobs in a terminal state.
func (e *Engine) DeleteJobsByState(ctx context.Context, state job.State) (int64, error) {
	return e.store.DeleteJobsByState(ctx, state)
}

// RunNow brings a Queued job's run_at forward to now.
func (e *Engine) RunNow(ctx context.Context, id uuid.UUID) (bool, error) {
	return e.store.RunNow(ctx, id, time.Now())
}

// ForceUnlock moves a job of any state to Failed, unconditionally
// clearing its lease. It is an operator escape hatch for a job stuck
// behind a lease RecoveryLoop could never reclaim on its own.
func (e *Engine) ForceUnlock(ctx context.Context, id uuid.UUID, reason string) error {
	return e.store.ForceUnlock(ctx, id, time.Now(), reason)
}

// SetPaused pauses or resumes claiming across the whole queue. A
// paused queue still accepts Enqueue calls; it just stops Pool from
// claiming new work.
func (e *Engine) SetPaused(ctx context.Context, paused bool) error {
	return e.store.SetPaused(ctx, paused)
}

// SetConcurrency updates the configured concurrency. Pool reads
// concurrency at construction, so changing it here takes effect on
// the next Pool restart.
func (e *Engine) SetConcurrency(ctx context.Context, concurrency int) error {
	return e.store.SetConcurrency(ctx, concurrency)
}

// GetSettings returns the current paused/concurrency settings.
func (e *Engine) GetSettings(ctx context.Context) (*store.Settings, error) {
	return e.store.GetSettings(ctx)
}
