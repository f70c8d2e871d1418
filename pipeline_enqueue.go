package doceq

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq/job"
)

// defaultMaxAttempts reports the max_attempts EnqueueProjectScoped and
// EnqueueWithDedupeKey assign at enqueue time: 300
// for the two reschedule-loop "wait" types (their retry budget is
// really a wall-clock/attempt cap on polling, not a failure count),
// 3 for everything else.
func defaultMaxAttempts(t job.Type) uint32 {
	switch t {
	case job.TypeDockerWaitReady, job.TypeProductionWaitReady:
		return 300
	default:
		return 3
	}
}

// projectDedupeKey builds the "{type}:{projectId}" dedupe key shared by
// every project-scoped pipeline step, so at most one active job of a
// given type exists per project at a time.
func projectDedupeKey(t job.Type, projectID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", t, projectID)
}

// ProductionDeployDedupeKey is production.build's dedupe key, so a
// deploy cannot be enqueued twice for the same project concurrently.
// production.start uses the standard project-scoped key.
func ProductionDeployDedupeKey(projectID uuid.UUID) string {
	return fmt.Sprintf("production.deploy:%s", projectID)
}

// UserDeleteDedupeKey is the dedupe key for projects.deleteAllForUser,
// keyed by user rather than project.
func UserDeleteDedupeKey(userID uuid.UUID) string {
	return fmt.Sprintf("projects.deleteAllForUser:%s", userID)
}

// EnqueueProjectScoped enqueues a job of a project-scoped type with the
// standard "{type}:{projectId}" dedupe key and the type's default
// max_attempts. It is the entry point handlers and bootstrap code use
// for every pipeline step except production.build (keyed by
// ProductionDeployDedupeKey) and projects.deleteAllForUser (keyed by
// user, see
// UserDeleteDedupeKey).
func (e *Engine) EnqueueProjectScoped(ctx context.Context, t job.Type, projectID uuid.UUID, payload []byte, priority int) (*job.Job, error) {
	return e.Enqueue(ctx, t, &projectID, payload, priority, defaultMaxAttempts(t), projectDedupeKey(t, projectID), time.Now())
}

// EnqueueWithDedupeKey enqueues a job under an explicit dedupe key,
// for the pipeline steps whose key does not follow the standard
// "{type}:{projectId}" convention: production.build
// (ProductionDeployDedupeKey) and projects.deleteAllForUser
// (UserDeleteDedupeKey).
func (e *Engine) EnqueueWithDedupeKey(ctx context.Context, t job.Type, projectID *uuid.UUID, payload []byte, priority int, dedupeKey string) (*job.Job, error) {
	return e.Enqueue(ctx, t, projectID, payload, priority, defaultMaxAttempts(t), dedupeKey, time.Now())
}
