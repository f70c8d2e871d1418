package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pablopunk/doceq"
	"github.com/pablopunk/doceq/job"
)

// ProjectsDeleteAllForUser enumerates a user's projects and enqueues a
// project.delete for each. Each enqueue is dedupe-keyed by project, so
// re-running this handler after a partial failure (or a duplicate
// submission) re-enqueues at most one delete per still-existing
// project.
func (h *Handlers) ProjectsDeleteAllForUser(ctx context.Context, jc *doceq.JobContext) error {
	p, err := decode[ProjectsDeleteAllForUserPayload](jc.Job.Payload)
	if err != nil {
		return fmt.Errorf("decode projects.deleteAllForUser payload: %w", err)
	}

	ids, err := h.Projects.ListProjectIDsByOwner(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("list projects for user: %w", err)
	}

	for _, id := range ids {
		if err := jc.ThrowIfCancelRequested(ctx); err != nil {
			return err
		}
		payload, err := json.Marshal(ProjectDeletePayload{ProjectID: id, RequestedByUserID: p.UserID})
		if err != nil {
			return fmt.Errorf("encode project.delete payload: %w", err)
		}
		if _, err := h.Engine.EnqueueProjectScoped(ctx, job.TypeProjectDelete, id, payload, 0); err != nil {
			return fmt.Errorf("enqueue project.delete for %s: %w", id, err)
		}
	}
	return nil
}
