package handlers

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Payload field shapes for the closed job-type set. Handlers unmarshal
// job.Job.Payload into one of these, mutate the wait-loop bookkeeping
// fields where applicable, and marshal the next job's payload from the
// same shape (or a related one).

// ProjectCreatePayload is project.create's payload.
type ProjectCreatePayload struct {
	ProjectID   uuid.UUID         `json:"projectId"`
	OwnerUserID uuid.UUID         `json:"ownerUserId"`
	Prompt      string            `json:"prompt"`
	Model       string            `json:"model,omitempty"`
	Images      []ImageAttachment `json:"images,omitempty"`
}

// ProjectDeletePayload is project.delete's payload.
type ProjectDeletePayload struct {
	ProjectID         uuid.UUID `json:"projectId"`
	RequestedByUserID uuid.UUID `json:"requestedByUserId"`
}

// ProjectsDeleteAllForUserPayload is projects.deleteAllForUser's
// payload.
type ProjectsDeleteAllForUserPayload struct {
	UserID uuid.UUID `json:"userId"`
}

// DockerComposeUpPayload is docker.composeUp's payload.
type DockerComposeUpPayload struct {
	ProjectID uuid.UUID `json:"projectId"`
	Reason    string    `json:"reason,omitempty"`
}

// DockerWaitReadyPayload is docker.waitReady's payload. StartedAt and
// RescheduleCount are written by project.create's chain at enqueue
// time and re-read by the handler on every reschedule to evaluate the
// 300_000ms wall-clock deadline and the 300-reschedule cap (spec §4.7;
// §4.6's "attempts < 10" is read as a slip against §6.2/§4.7's
// explicit max_attempts≈300 for this type).
type DockerWaitReadyPayload struct {
	ProjectID       uuid.UUID `json:"projectId"`
	StartedAt       int64     `json:"startedAt"`
	RescheduleCount int       `json:"rescheduleCount"`
}

// DockerEnsureRunningPayload is docker.ensureRunning's payload.
type DockerEnsureRunningPayload struct {
	ProjectID uuid.UUID `json:"projectId"`
}

// DockerStopPayload is docker.stop's payload.
type DockerStopPayload struct {
	ProjectID uuid.UUID `json:"projectId"`
}

// OpencodeSessionCreatePayload is opencode.sessionCreate's payload.
type OpencodeSessionCreatePayload struct {
	ProjectID uuid.UUID `json:"projectId"`
}

// OpencodeSendUserPromptPayload is opencode.sendUserPrompt's payload.
type OpencodeSendUserPromptPayload struct {
	ProjectID uuid.UUID `json:"projectId"`
}

// ProductionBuildPayload is production.build's payload.
type ProductionBuildPayload struct {
	ProjectID uuid.UUID `json:"projectId"`
}

// ProductionStartPayload is production.start's payload.
type ProductionStartPayload struct {
	ProjectID      uuid.UUID `json:"projectId"`
	ProductionHash string    `json:"productionHash"`
}

// ProductionWaitReadyPayload is production.waitReady's payload, with
// the same wait-loop bookkeeping shape as DockerWaitReadyPayload: a
// 300_000ms wall-clock deadline and a 300-reschedule cap.
type ProductionWaitReadyPayload struct {
	ProjectID       uuid.UUID `json:"projectId"`
	ProductionPort  int       `json:"productionPort"`
	ProductionHash  string    `json:"productionHash"`
	StartedAt       int64     `json:"startedAt"`
	RescheduleCount int       `json:"rescheduleCount"`
}

// ProductionStopPayload is production.stop's payload.
type ProductionStopPayload struct {
	ProjectID uuid.UUID `json:"projectId"`
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}
