package handlers

import (
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq"
	"github.com/pablopunk/doceq/job"
)

// Handlers bundles the external collaborators the thirteen pipeline
// handlers need and exposes one doceq.Handler-shaped method per job
// type. A single Handlers value is built once at process startup and
// registered onto a doceq.Registry via RegisterAll.
type Handlers struct {
	Engine *doceq.Engine

	Projects  ProjectStore
	Runtime   ContainerRuntime
	Sessions  SessionServer
	Ports     PortAllocator
	Template  ProjectTemplate
	Builder   Builder
	Workspace ProductionWorkspace

	HTTPClient *http.Client
	Log        *slog.Logger

	// ImageRepo is the prefix production.start builds image tags under:
	// "{ImageRepo}-{projectId}-{hash}".
	ImageRepo string

	// KeepProductionVersions bounds production.start's fire-and-forget
	// old-version cleanup.
	KeepProductionVersions int

	// DataDir is the root directory each project's filesystem is
	// materialized under: "{DataDir}/{projectId}".
	DataDir string
}

// projectDir is the on-disk location of a project's filesystem. The
// project filesystem layout is otherwise out of scope (an external
// collaborator detail per the spec); this is the one fixed convention
// the handlers agree on.
func (h *Handlers) projectDir(id uuid.UUID) string {
	return filepath.Join(h.DataDir, id.String())
}

// RegisterAll binds every pipeline handler onto reg under its job
// type. It panics (via Registry.Register) if any type is already
// registered, so calling it twice on the same Registry is a
// programming error, not a silent overwrite.
func (h *Handlers) RegisterAll(reg *doceq.Registry) {
	reg.Register(job.TypeProjectCreate, h.ProjectCreate)
	reg.Register(job.TypeProjectDelete, h.ProjectDelete)
	reg.Register(job.TypeProjectsDeleteAllForUser, h.ProjectsDeleteAllForUser)
	reg.Register(job.TypeDockerComposeUp, h.DockerComposeUp)
	reg.Register(job.TypeDockerWaitReady, h.DockerWaitReady)
	reg.Register(job.TypeDockerEnsureRunning, h.DockerEnsureRunning)
	reg.Register(job.TypeDockerStop, h.DockerStop)
	reg.Register(job.TypeOpencodeSessionCreate, h.OpencodeSessionCreate)
	reg.Register(job.TypeOpencodeSendUserPrompt, h.OpencodeSendUserPrompt)
	reg.Register(job.TypeProductionBuild, h.ProductionBuild)
	reg.Register(job.TypeProductionStart, h.ProductionStart)
	reg.Register(job.TypeProductionWaitReady, h.ProductionWaitReady)
	reg.Register(job.TypeProductionStop, h.ProductionStop)
}
