package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pablopunk/doceq"
	"github.com/pablopunk/doceq/job"
)

// OpencodeSessionCreate creates an agent session for a project via the
// session server and persists its id. Idempotent: a project that
// already has a BootstrapSessionID skips straight to enqueuing the
// successor.
func (h *Handlers) OpencodeSessionCreate(ctx context.Context, jc *doceq.JobContext) error {
	p, err := decode[OpencodeSessionCreatePayload](jc.Job.Payload)
	if err != nil {
		return fmt.Errorf("decode opencode.sessionCreate payload: %w", err)
	}

	proj, err := h.Projects.GetProject(ctx, p.ProjectID)
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}
	if proj == nil || proj.Status == ProjectDeleting {
		return nil
	}

	if proj.BootstrapSessionID == "" {
		sessionID, err := h.Sessions.CreateSession(ctx, p.ProjectID)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		if err := h.Projects.SetBootstrapSessionID(ctx, p.ProjectID, sessionID); err != nil {
			return fmt.Errorf("persist bootstrap session id: %w", err)
		}
	}

	payload, err := json.Marshal(OpencodeSendUserPromptPayload{ProjectID: p.ProjectID})
	if err != nil {
		return fmt.Errorf("encode opencode.sendUserPrompt payload: %w", err)
	}
	_, err = h.Engine.EnqueueProjectScoped(ctx, job.TypeOpencodeSendUserPrompt, p.ProjectID, payload, 0)
	return err
}
