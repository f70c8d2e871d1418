package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq"
)

// ProjectDelete tears a project down: mark it Deleting, bring down its
// containers (volumes included) and any production container/image,
// remove its on-disk directory, then hard-delete its DB row. Every
// step before the hard delete is best-effort (logged, never failed)
// since the project may already be half gone from a prior partial
// attempt; only the hard delete is critical, per the spec: if it
// fails, the job retries and the earlier steps simply run again
// against an already-clean target.
func (h *Handlers) ProjectDelete(ctx context.Context, jc *doceq.JobContext) error {
	p, err := decode[ProjectDeletePayload](jc.Job.Payload)
	if err != nil {
		return fmt.Errorf("decode project.delete payload: %w", err)
	}

	proj, err := h.Projects.GetProject(ctx, p.ProjectID)
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}
	if proj == nil {
		return nil
	}

	if err := h.Projects.UpdateStatus(ctx, p.ProjectID, ProjectDeleting); err != nil {
		h.Log.Warn("cannot mark project deleting", "project", p.ProjectID, "err", err)
	}

	if err := jc.ThrowIfCancelRequested(ctx); err != nil {
		return err
	}
	if _, err := h.Runtime.ComposeDown(ctx, proj.Dir, true); err != nil {
		h.Log.Warn("compose down failed during delete", "project", p.ProjectID, "err", err)
	}

	if err := jc.ThrowIfCancelRequested(ctx); err != nil {
		return err
	}
	containerName := productionContainerName(p.ProjectID)
	if _, err := h.Runtime.RemoveContainer(ctx, containerName); err != nil {
		h.Log.Warn("remove production container failed during delete", "project", p.ProjectID, "err", err)
	}
	if proj.ProductionHash != "" {
		if _, err := h.Runtime.RemoveImage(ctx, productionImageTag(h.ImageRepo, p.ProjectID, proj.ProductionHash)); err != nil {
			h.Log.Warn("remove production image failed during delete", "project", p.ProjectID, "err", err)
		}
	}

	if err := jc.ThrowIfCancelRequested(ctx); err != nil {
		return err
	}
	if err := removeProjectDir(proj.Dir); err != nil {
		h.Log.Warn("remove project directory failed during delete", "project", p.ProjectID, "err", err)
	}

	if err := h.Projects.HardDelete(ctx, p.ProjectID); err != nil {
		return fmt.Errorf("hard delete project row: %w", err)
	}
	return nil
}

func productionContainerName(projectID uuid.UUID) string {
	return fmt.Sprintf("doce-prod-%s", projectID)
}

func productionImageTag(repo string, projectID uuid.UUID, hash string) string {
	return fmt.Sprintf("%s-%s-%s", repo, projectID, hash)
}
