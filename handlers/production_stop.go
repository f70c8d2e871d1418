package handlers

import (
	"context"
	"fmt"

	"github.com/pablopunk/doceq"
)

// ProductionStop removes a project's production container (and,
// best-effort, its image) and marks the deployment Stopped without
// clearing its hash/port, so a later production.start can roll back to
// the same version.
func (h *Handlers) ProductionStop(ctx context.Context, jc *doceq.JobContext) error {
	p, err := decode[ProductionStopPayload](jc.Job.Payload)
	if err != nil {
		return fmt.Errorf("decode production.stop payload: %w", err)
	}

	proj, err := h.Projects.GetProject(ctx, p.ProjectID)
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}
	if proj == nil {
		return nil
	}

	containerName := productionContainerName(p.ProjectID)
	if _, err := h.Runtime.RemoveContainer(ctx, containerName); err != nil {
		h.Log.Warn("remove production container failed", "project", p.ProjectID, "err", err)
	}
	if proj.ProductionHash != "" {
		tag := productionImageTag(h.ImageRepo, p.ProjectID, proj.ProductionHash)
		if _, err := h.Runtime.RemoveImage(ctx, tag); err != nil {
			h.Log.Warn("remove production image failed", "project", p.ProjectID, "err", err)
		}
	}

	return h.Projects.SetProductionFields(ctx, p.ProjectID, ProductionFields{
		ProductionStatus: ProductionStopped,
		ProductionHash:   proj.ProductionHash,
		ProductionPort:   proj.ProductionPort,
	})
}
