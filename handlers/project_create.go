package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq"
	"github.com/pablopunk/doceq/handlers/keygen"
	"github.com/pablopunk/doceq/job"
)

// ProjectCreate allocates ports, materializes the project's filesystem
// from the engine's template, writes its configuration (including a
// freshly generated API key), creates the project's DB row, and
// enqueues docker.composeUp. It is idempotent: if the project row
// already exists (a retry after a prior attempt partially succeeded),
// it skips straight to enqueuing the successor.
func (h *Handlers) ProjectCreate(ctx context.Context, jc *doceq.JobContext) error {
	p, err := decode[ProjectCreatePayload](jc.Job.Payload)
	if err != nil {
		return fmt.Errorf("decode project.create payload: %w", err)
	}

	existing, err := h.Projects.GetProject(ctx, p.ProjectID)
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}
	if existing != nil {
		return h.enqueueComposeUp(ctx, p.ProjectID, "project already created")
	}

	previewPort, sessionPort, err := h.Ports.AllocateProjectPorts(ctx, p.ProjectID)
	if err != nil {
		return fmt.Errorf("allocate project ports: %w", err)
	}

	key, err := keygen.Generate("sk")
	if err != nil {
		return fmt.Errorf("generate api key: %w", err)
	}

	dir := h.projectDir(p.ProjectID)
	if err := h.Template.Materialize(ctx, dir, previewPort, sessionPort, key.Full); err != nil {
		return fmt.Errorf("materialize project template: %w", err)
	}
	if err := writePromptStaging(dir, stagedPrompt{Text: p.Prompt, Model: p.Model, Images: p.Images}); err != nil {
		return fmt.Errorf("stage initial prompt: %w", err)
	}

	if _, err := h.Projects.CreateProject(ctx, CreateProjectParams{
		ID:          p.ProjectID,
		OwnerUserID: p.OwnerUserID,
		Dir:         dir,
		PreviewPort: previewPort,
		SessionPort: sessionPort,
		APIKey:      key.Full,
	}); err != nil {
		return fmt.Errorf("create project row: %w", err)
	}

	return h.enqueueComposeUp(ctx, p.ProjectID, "initial create")
}

func (h *Handlers) enqueueComposeUp(ctx context.Context, projectID uuid.UUID, reason string) error {
	payload, err := json.Marshal(DockerComposeUpPayload{ProjectID: projectID, Reason: reason})
	if err != nil {
		return fmt.Errorf("encode docker.composeUp payload: %w", err)
	}
	_, err = h.Engine.EnqueueProjectScoped(ctx, job.TypeDockerComposeUp, projectID, payload, 0)
	return err
}
