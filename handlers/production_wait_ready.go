package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pablopunk/doceq"
)

const (
	productionWaitDeadline       = 5 * time.Minute
	productionWaitMaxReschedules = 300
	productionWaitPollDelay      = 1 * time.Second
)

// ProductionWaitReady polls a production deployment's port until it
// responds or the deadline/reschedule cap elapses, mirroring
// DockerWaitReady's reschedule loop.
func (h *Handlers) ProductionWaitReady(ctx context.Context, jc *doceq.JobContext) error {
	p, err := decode[ProductionWaitReadyPayload](jc.Job.Payload)
	if err != nil {
		return fmt.Errorf("decode production.waitReady payload: %w", err)
	}

	proj, err := h.Projects.GetProject(ctx, p.ProjectID)
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}
	if proj == nil || proj.Status == ProjectDeleting {
		return nil
	}
	if err := jc.ThrowIfCancelRequested(ctx); err != nil {
		return err
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/", p.ProductionPort)
	if probeHealthy(ctx, h.HTTPClient, url) {
		return h.Projects.SetProductionFields(ctx, p.ProjectID, ProductionFields{
			ProductionStatus: ProductionRunning,
			ProductionURL:    url,
			ProductionHash:   p.ProductionHash,
			ProductionPort:   p.ProductionPort,
		})
	}

	startedAt := time.UnixMilli(p.StartedAt)
	if time.Since(startedAt) < productionWaitDeadline && p.RescheduleCount < productionWaitMaxReschedules {
		next, err := json.Marshal(ProductionWaitReadyPayload{
			ProjectID:       p.ProjectID,
			ProductionPort:  p.ProductionPort,
			ProductionHash:  p.ProductionHash,
			StartedAt:       p.StartedAt,
			RescheduleCount: p.RescheduleCount + 1,
		})
		if err != nil {
			return fmt.Errorf("encode production.waitReady reschedule payload: %w", err)
		}
		return jc.RescheduleWithPayload(productionWaitPollDelay, next)
	}

	errMsg := fmt.Sprintf("production deployment for %s never became healthy on port %d", p.ProjectID, p.ProductionPort)
	if sErr := h.Projects.SetProductionFields(ctx, p.ProjectID, ProductionFields{
		ProductionStatus: ProductionFailed,
		ProductionError:  errMsg,
		ProductionHash:   p.ProductionHash,
		ProductionPort:   p.ProductionPort,
	}); sErr != nil {
		h.Log.Error("cannot mark production failed after wait-ready timeout", "project", p.ProjectID, "err", sErr)
	}
	return fmt.Errorf("production.waitReady: %s", errMsg)
}
