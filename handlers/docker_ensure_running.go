package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pablopunk/doceq"
	"github.com/pablopunk/doceq/job"
)

// ensureRunningWaitBudget and ensureRunningPollInterval bound
// docker.ensureRunning's in-handler wait, distinct from
// docker.waitReady's reschedule loop: this handler is used for a
// bounded "bring it back up" restart, not the initial, much longer
// boot sequence, so it blocks synchronously rather than rescheduling.
const (
	ensureRunningWaitBudget   = 30 * time.Second
	ensureRunningPollInterval = time.Second
)

// DockerEnsureRunning brings a project's container set up and waits up
// to 30s for both health probes, re-creating the opencode session if
// the prior one is gone.
func (h *Handlers) DockerEnsureRunning(ctx context.Context, jc *doceq.JobContext) error {
	p, err := decode[DockerEnsureRunningPayload](jc.Job.Payload)
	if err != nil {
		return fmt.Errorf("decode docker.ensureRunning payload: %w", err)
	}

	proj, err := h.Projects.GetProject(ctx, p.ProjectID)
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}
	if proj == nil || proj.Status == ProjectDeleting {
		return nil
	}

	result, err := h.Runtime.ComposeUp(ctx, proj.Dir)
	if err != nil {
		return fmt.Errorf("docker compose up: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("docker compose up failed: %s", truncate(result.Stderr, 500))
	}

	previewURL := fmt.Sprintf("http://127.0.0.1:%d/", proj.PreviewPort)
	sessionURL := fmt.Sprintf("http://127.0.0.1:%d/", proj.SessionPort)
	deadline := time.Now().Add(ensureRunningWaitBudget)
	for {
		if err := jc.ThrowIfCancelRequested(ctx); err != nil {
			return err
		}
		if probeHealthy(ctx, h.HTTPClient, previewURL) && probeHealthy(ctx, h.HTTPClient, sessionURL) {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("docker.ensureRunning: project %s did not become healthy within %s", p.ProjectID, ensureRunningWaitBudget)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ensureRunningPollInterval):
		}
	}

	if err := h.Projects.UpdateStatus(ctx, p.ProjectID, ProjectRunning); err != nil {
		return fmt.Errorf("mark project running: %w", err)
	}

	if proj.BootstrapSessionID != "" {
		return nil
	}
	payload, err := json.Marshal(OpencodeSessionCreatePayload{ProjectID: p.ProjectID})
	if err != nil {
		return fmt.Errorf("encode opencode.sessionCreate payload: %w", err)
	}
	_, err = h.Engine.EnqueueProjectScoped(ctx, job.TypeOpencodeSessionCreate, p.ProjectID, payload, 0)
	return err
}
