package job

import (
	"encoding/json"
	"fmt"
)

// Type identifies a job's handler and payload schema. The set is closed:
// ValidatePayload rejects any value not listed here.
type Type string

const (
	TypeProjectCreate               Type = "project.create"
	TypeProjectDelete               Type = "project.delete"
	TypeProjectsDeleteAllForUser    Type = "projects.deleteAllForUser"
	TypeDockerComposeUp             Type = "docker.composeUp"
	TypeDockerWaitReady             Type = "docker.waitReady"
	TypeDockerEnsureRunning         Type = "docker.ensureRunning"
	TypeDockerStop                  Type = "docker.stop"
	TypeOpencodeSessionCreate       Type = "opencode.sessionCreate"
	TypeOpencodeSendUserPrompt      Type = "opencode.sendUserPrompt"
	TypeProductionBuild             Type = "production.build"
	TypeProductionStart             Type = "production.start"
	TypeProductionWaitReady         Type = "production.waitReady"
	TypeProductionStop              Type = "production.stop"
)

// knownTypes is the closed set of job types the engine will dispatch.
var knownTypes = map[Type]bool{
	TypeProjectCreate:            true,
	TypeProjectDelete:            true,
	TypeProjectsDeleteAllForUser: true,
	TypeDockerComposeUp:          true,
	TypeDockerWaitReady:          true,
	TypeDockerEnsureRunning:      true,
	TypeDockerStop:               true,
	TypeOpencodeSessionCreate:    true,
	TypeOpencodeSendUserPrompt:   true,
	TypeProductionBuild:          true,
	TypeProductionStart:          true,
	TypeProductionWaitReady:      true,
	TypeProductionStop:           true,
}

// Known reports whether t is a member of the closed job-type set.
func (t Type) Known() bool {
	return knownTypes[t]
}

// ValidatePayload rejects unknown job types and malformed JSON payloads.
// It is called by the claimer path before a job is handed to a handler,
// per the spec's "the engine validates them on claim via a schema check
// before dispatch" requirement. It does not validate field-level
// semantics beyond well-formed JSON; handlers remain responsible for
// interpreting their own payload.
func ValidatePayload(t Type, payload []byte) error {
	if !t.Known() {
		return fmt.Errorf("unknown job type: %s", t)
	}
	if !json.Valid(payload) {
		return fmt.Errorf("invalid payload json for job type %s", t)
	}
	return nil
}
