package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pablopunk/doceq"
	"github.com/pablopunk/doceq/job"
)

// productionBuildTimeout is the wall-clock cap on a single production
// build invocation.
const productionBuildTimeout = 5 * time.Minute

// ProductionBuild runs a project's production build command, hashes
// its output, and enqueues production.start carrying that hash.
func (h *Handlers) ProductionBuild(ctx context.Context, jc *doceq.JobContext) error {
	p, err := decode[ProductionBuildPayload](jc.Job.Payload)
	if err != nil {
		return fmt.Errorf("decode production.build payload: %w", err)
	}

	proj, err := h.Projects.GetProject(ctx, p.ProjectID)
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}
	if proj == nil || proj.Status == ProjectDeleting {
		return nil
	}

	if err := h.Projects.SetProductionFields(ctx, p.ProjectID, ProductionFields{ProductionStatus: ProductionBuilding, ProductionHash: proj.ProductionHash, ProductionPort: proj.ProductionPort}); err != nil {
		return fmt.Errorf("mark production building: %w", err)
	}

	if err := jc.ThrowIfCancelRequested(ctx); err != nil {
		return err
	}

	buildCtx, cancel := context.WithTimeout(ctx, productionBuildTimeout)
	defer cancel()
	outputDir, err := h.Builder.Build(buildCtx, proj.Dir)
	if err != nil {
		if sErr := h.Projects.SetProductionFields(ctx, p.ProjectID, ProductionFields{ProductionStatus: ProductionFailed, ProductionError: truncate(err.Error(), 500), ProductionHash: proj.ProductionHash, ProductionPort: proj.ProductionPort}); sErr != nil {
			h.Log.Error("cannot mark production failed after build error", "project", p.ProjectID, "err", sErr)
		}
		return fmt.Errorf("production build: %w", err)
	}

	if err := jc.ThrowIfCancelRequested(ctx); err != nil {
		return err
	}

	hash, err := hashDir(outputDir)
	if err != nil {
		return fmt.Errorf("hash build output: %w", err)
	}

	if err := jc.ThrowIfCancelRequested(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(ProductionStartPayload{ProjectID: p.ProjectID, ProductionHash: hash})
	if err != nil {
		return fmt.Errorf("encode production.start payload: %w", err)
	}
	_, err = h.Engine.EnqueueProjectScoped(ctx, job.TypeProductionStart, p.ProjectID, payload, 0)
	return err
}
