package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq"
	"github.com/pablopunk/doceq/job"
)

// ProductionStart materializes a hash-versioned production directory,
// atomically promotes it to "current", builds its image, swaps out any
// previously running production container, and enqueues
// production.waitReady. Old version cleanup runs fire-and-forget so it
// never delays the job's own completion.
func (h *Handlers) ProductionStart(ctx context.Context, jc *doceq.JobContext) error {
	p, err := decode[ProductionStartPayload](jc.Job.Payload)
	if err != nil {
		return fmt.Errorf("decode production.start payload: %w", err)
	}

	proj, err := h.Projects.GetProject(ctx, p.ProjectID)
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}
	if proj == nil || proj.Status == ProjectDeleting {
		return nil
	}

	port := proj.ProductionPort
	if port == 0 {
		port, err = h.Ports.AllocateProductionPort(ctx, p.ProjectID)
		if err != nil {
			return fmt.Errorf("allocate production port: %w", err)
		}
	}

	versionDir, err := h.Workspace.MaterializeVersion(ctx, proj.Dir, p.ProductionHash, port)
	if err != nil {
		return fmt.Errorf("materialize production version: %w", err)
	}
	if err := h.Workspace.PromoteCurrent(ctx, proj.Dir, versionDir); err != nil {
		return fmt.Errorf("promote production version: %w", err)
	}

	tag := productionImageTag(h.ImageRepo, p.ProjectID, p.ProductionHash)
	buildResult, err := h.Runtime.BuildImage(ctx, versionDir, tag)
	if err != nil {
		return fmt.Errorf("build production image: %w", err)
	}
	if !buildResult.Success {
		return fmt.Errorf("build production image failed: %s", truncate(buildResult.Stderr, 500))
	}

	containerName := productionContainerName(p.ProjectID)
	if _, err := h.Runtime.RemoveContainer(ctx, containerName); err != nil {
		h.Log.Warn("remove previous production container failed", "project", p.ProjectID, "err", err)
	}

	runResult, err := h.Runtime.RunContainer(ctx, ContainerSpec{
		Name:    containerName,
		Image:   tag,
		Port:    port,
		EnvFile: ".env",
		Dir:     versionDir,
	})
	if err != nil {
		return fmt.Errorf("run production container: %w", err)
	}
	if !runResult.Success {
		return fmt.Errorf("run production container failed: %s", truncate(runResult.Stderr, 500))
	}

	if err := h.Projects.SetProductionFields(ctx, p.ProjectID, ProductionFields{
		ProductionHash: p.ProductionHash,
		ProductionPort: port,
	}); err != nil {
		return fmt.Errorf("persist production fields: %w", err)
	}

	go h.cleanupOldProductionVersions(proj.Dir, p.ProjectID)

	payload, err := json.Marshal(ProductionWaitReadyPayload{
		ProjectID:      p.ProjectID,
		ProductionPort: port,
		ProductionHash: p.ProductionHash,
		StartedAt:      time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encode production.waitReady payload: %w", err)
	}
	_, err = h.Engine.EnqueueProjectScoped(ctx, job.TypeProductionWaitReady, p.ProjectID, payload, 0)
	return err
}

func (h *Handlers) cleanupOldProductionVersions(projectDir string, projectID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := h.Workspace.CleanupOldVersions(ctx, projectDir, h.KeepProductionVersions); err != nil {
		h.Log.Warn("cleanup old production versions failed", "project", projectID, "err", err)
	}
}
