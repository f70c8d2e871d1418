package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pablopunk/doceq"
)

// messageObservationDelay is how long OpencodeSendUserPrompt waits
// after firing the prompt before listing messages to locate the one it
// just created. Completion of the agent's work is observed externally
// via the session-server event stream; this handler only needs the
// message to exist, not finish.
const messageObservationDelay = 1 * time.Second

// OpencodeSendUserPrompt loads the prompt staged by project.create,
// sends it to the project's session asynchronously, and records the id
// of the resulting user message. Idempotent: a project with
// InitialPromptSent already true returns immediately.
func (h *Handlers) OpencodeSendUserPrompt(ctx context.Context, jc *doceq.JobContext) error {
	p, err := decode[OpencodeSendUserPromptPayload](jc.Job.Payload)
	if err != nil {
		return fmt.Errorf("decode opencode.sendUserPrompt payload: %w", err)
	}

	proj, err := h.Projects.GetProject(ctx, p.ProjectID)
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}
	if proj == nil || proj.Status == ProjectDeleting {
		return nil
	}
	if proj.InitialPromptSent {
		return nil
	}

	staged, err := readPromptStaging(proj.Dir)
	if err != nil {
		return fmt.Errorf("read staged prompt: %w", err)
	}
	if staged == nil {
		return fmt.Errorf("opencode.sendUserPrompt: no staged prompt found for project %s", p.ProjectID)
	}

	prompt := Prompt{Text: staged.Text, Model: staged.Model, Images: staged.Images}
	if err := h.Sessions.SendPromptAsync(ctx, proj.BootstrapSessionID, prompt); err != nil {
		return fmt.Errorf("send prompt: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(messageObservationDelay):
	}

	messages, err := h.Sessions.ListMessages(ctx, proj.BootstrapSessionID)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	messageID := locateUserMessage(messages, staged.Text)
	if messageID == "" {
		return fmt.Errorf("opencode.sendUserPrompt: no user message found in session %s", proj.BootstrapSessionID)
	}

	return h.Projects.SetInitialPromptSent(ctx, p.ProjectID, messageID)
}

// locateUserMessage finds the user message matching promptText by
// prefix, falling back to the last user message in the list if no
// prefix match is found. The fallback is a known limitation: it may
// associate the wrong message id if more than one user message exists
// by the time this handler observes the session (spec §9's
// documented, not fixed, ambiguity).
func locateUserMessage(messages []Message, promptText string) string {
	var lastUserID string
	for _, m := range messages {
		if m.Role != "user" {
			continue
		}
		lastUserID = m.ID
		if strings.HasPrefix(m.Text, promptText) {
			return m.ID
		}
	}
	return lastUserID
}
