package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq"
	"github.com/pablopunk/doceq/job"
	"github.com/pablopunk/doceq/store"
)

// DockerStop cancels any competing docker.ensureRunning job for the
// same project (queued jobs are cancelled outright; a running one is
// flagged for cooperative cancellation, since per-project exclusion
// means it cannot already be running alongside this job) and then
// stops the project's container set.
func (h *Handlers) DockerStop(ctx context.Context, jc *doceq.JobContext) error {
	p, err := decode[DockerStopPayload](jc.Job.Payload)
	if err != nil {
		return fmt.Errorf("decode docker.stop payload: %w", err)
	}

	if err := h.cancelCompetingEnsureRunning(ctx, p.ProjectID); err != nil {
		return fmt.Errorf("cancel competing docker.ensureRunning: %w", err)
	}

	proj, err := h.Projects.GetProject(ctx, p.ProjectID)
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}
	if proj == nil || proj.Status == ProjectDeleting {
		return nil
	}

	result, err := h.Runtime.ComposeStop(ctx, proj.Dir)
	if err != nil {
		return fmt.Errorf("docker compose stop: %w", err)
	}
	if !result.Success {
		if uErr := h.Projects.UpdateStatus(ctx, p.ProjectID, ProjectError); uErr != nil {
			h.Log.Error("cannot mark project error after stop failure", "project", p.ProjectID, "err", uErr)
		}
		return fmt.Errorf("docker compose stop failed: %s", truncate(result.Stderr, 500))
	}
	return h.Projects.UpdateStatus(ctx, p.ProjectID, ProjectStopped)
}

func (h *Handlers) cancelCompetingEnsureRunning(ctx context.Context, projectID uuid.UUID) error {
	queued, err := h.Engine.ListJobs(ctx, store.Filters{
		ProjectID: &projectID,
		Type:      job.TypeDockerEnsureRunning,
		State:     job.Queued,
	}, 100, 0)
	if err != nil {
		return err
	}
	for _, j := range queued {
		if _, err := h.Engine.CancelQueuedJob(ctx, j.ID); err != nil {
			return err
		}
	}

	running, err := h.Engine.ListJobs(ctx, store.Filters{
		ProjectID: &projectID,
		Type:      job.TypeDockerEnsureRunning,
		State:     job.Running,
	}, 100, 0)
	if err != nil {
		return err
	}
	for _, j := range running {
		if err := h.Engine.RequestCancel(ctx, j.ID); err != nil {
			return err
		}
	}
	return nil
}
