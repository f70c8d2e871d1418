package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pablopunk/doceq"
	"github.com/pablopunk/doceq/job"
)

// DockerComposeUp brings up a project's container set. docker compose
// up -d is itself idempotent, so no extra guard is needed beyond the
// standard "project gone or deleting" short-circuit. On success it
// marks the project Starting and enqueues docker.waitReady; on failure
// it marks the project Error and fails the job.
func (h *Handlers) DockerComposeUp(ctx context.Context, jc *doceq.JobContext) error {
	p, err := decode[DockerComposeUpPayload](jc.Job.Payload)
	if err != nil {
		return fmt.Errorf("decode docker.composeUp payload: %w", err)
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
		if uErr := h.Projects.UpdateStatus(ctx, p.ProjectID, ProjectError); uErr != nil {
			h.Log.Error("cannot mark project error after compose up failure", "project", p.ProjectID, "err", uErr)
		}
		return fmt.Errorf("docker compose up failed: %s", truncate(result.Stderr, 500))
	}

	if err := h.Projects.UpdateStatus(ctx, p.ProjectID, ProjectStarting); err != nil {
		return fmt.Errorf("mark project starting: %w", err)
	}

	payload, err := json.Marshal(DockerWaitReadyPayload{
		ProjectID: p.ProjectID,
		StartedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encode docker.waitReady payload: %w", err)
	}
	_, err = h.Engine.EnqueueProjectScoped(ctx, job.TypeDockerWaitReady, p.ProjectID, payload, 0)
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
