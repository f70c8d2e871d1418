package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pablopunk/doceq"
	"github.com/pablopunk/doceq/job"
)

// dockerWaitDeadline and dockerWaitMaxReschedules bound
// docker.waitReady's polling loop (spec §4.7); rescheduleCount is
// tracked in the payload rather than job.Attempts since Reschedule
// deliberately does not consume the claim's attempt increment.
const (
	dockerWaitDeadline       = 5 * time.Minute
	dockerWaitMaxReschedules = 300
	dockerWaitPollDelay      = 1 * time.Second
)

// DockerWaitReady polls a project's preview and session-server health
// endpoints once per invocation. If both are healthy it pushes auth
// material into the session container, marks the project Running, and
// (idempotently) enqueues opencode.sessionCreate unless the initial
// prompt has already been sent. If not yet healthy it reschedules
// itself until the wall-clock deadline or reschedule cap is hit, at
// which point it fails the project into Error.
func (h *Handlers) DockerWaitReady(ctx context.Context, jc *doceq.JobContext) error {
	p, err := decode[DockerWaitReadyPayload](jc.Job.Payload)
	if err != nil {
		return fmt.Errorf("decode docker.waitReady payload: %w", err)
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

	previewURL := fmt.Sprintf("http://127.0.0.1:%d/", proj.PreviewPort)
	sessionURL := fmt.Sprintf("http://127.0.0.1:%d/", proj.SessionPort)
	ready := probeHealthy(ctx, h.HTTPClient, previewURL) && probeHealthy(ctx, h.HTTPClient, sessionURL)

	if !ready {
		startedAt := time.UnixMilli(p.StartedAt)
		if time.Since(startedAt) < dockerWaitDeadline && p.RescheduleCount < dockerWaitMaxReschedules {
			next, err := json.Marshal(DockerWaitReadyPayload{
				ProjectID:       p.ProjectID,
				StartedAt:       p.StartedAt,
				RescheduleCount: p.RescheduleCount + 1,
			})
			if err != nil {
				return fmt.Errorf("encode docker.waitReady reschedule payload: %w", err)
			}
			return jc.RescheduleWithPayload(dockerWaitPollDelay, next)
		}
		if uErr := h.Projects.UpdateStatus(ctx, p.ProjectID, ProjectError); uErr != nil {
			h.Log.Error("cannot mark project error after wait-ready timeout", "project", p.ProjectID, "err", uErr)
		}
		return fmt.Errorf("docker.waitReady: project %s never became healthy", p.ProjectID)
	}

	if _, err := h.Runtime.PushAuth(ctx, proj.Dir, proj.APIKey); err != nil {
		return fmt.Errorf("push auth material: %w", err)
	}
	if err := h.Projects.UpdateStatus(ctx, p.ProjectID, ProjectRunning); err != nil {
		return fmt.Errorf("mark project running: %w", err)
	}

	if proj.InitialPromptSent {
		return nil
	}
	payload, err := json.Marshal(OpencodeSessionCreatePayload{ProjectID: p.ProjectID})
	if err != nil {
		return fmt.Errorf("encode opencode.sessionCreate payload: %w", err)
	}
	_, err = h.Engine.EnqueueProjectScoped(ctx, job.TypeOpencodeSessionCreate, p.ProjectID, payload, 0)
	return err
}
