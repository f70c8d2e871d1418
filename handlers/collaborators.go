package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProjectStatus is the project-level state machine handlers drive:
// created -> starting -> running -> stopping -> stopped -> (restart)
// starting ...; running -> error; any state -> deleting (terminal from
// the queue's perspective).
type ProjectStatus string

const (
	ProjectCreated  ProjectStatus = "created"
	ProjectStarting ProjectStatus = "starting"
	ProjectRunning  ProjectStatus = "running"
	ProjectStopping ProjectStatus = "stopping"
	ProjectStopped  ProjectStatus = "stopped"
	ProjectError    ProjectStatus = "error"
	ProjectDeleting ProjectStatus = "deleting"
)

// ProductionStatus mirrors ProjectStatus but for a project's production
// deployment, which has its own independent lifecycle.
type ProductionStatus string

const (
	ProductionBuilding ProductionStatus = "building"
	ProductionRunning  ProductionStatus = "running"
	ProductionStopped  ProductionStatus = "stopped"
	ProductionFailed   ProductionStatus = "failed"
)

// Project is the subset of project state handlers read and write. The
// project store is the system of record; Project values returned by it
// are snapshots.
type Project struct {
	ID                 uuid.UUID
	OwnerUserID         uuid.UUID
	Status             ProjectStatus
	Dir                string
	PreviewPort        int
	SessionPort        int
	APIKey             string
	BootstrapSessionID string
	InitialPromptSent  bool
	InitialMessageID   string

	ProductionHash   string
	ProductionPort   int
	ProductionURL    string
	ProductionStatus ProductionStatus
	ProductionError  string
}

// ProductionFields groups the production-deploy attributes
// production.build/production.start/production.stop persist together,
// so a handler commits them in one ProjectStore call instead of four.
type ProductionFields struct {
	ProductionHash   string
	ProductionPort   int
	ProductionURL    string
	ProductionStatus ProductionStatus
	ProductionError  string
}

// CreateProjectParams is what project.create passes to ProjectStore once
// it has allocated ports and written the project's on-disk
// configuration, to materialize the DB row itself.
type CreateProjectParams struct {
	ID          uuid.UUID
	OwnerUserID uuid.UUID
	Dir         string
	PreviewPort int
	SessionPort int
	APIKey      string
}

// ProjectStore is the external system of record for project rows. It
// lives outside the queue core: handlers call it to read and mutate
// project state, but the queue never models a project's shape beyond
// what these methods expose.
//
// Implementations must tolerate GetProject returning (nil, nil) for an
// id that no longer exists; handlers treat that as a no-op rather than
// an error, since a project may be deleted out from under a still-
// queued job.
type ProjectStore interface {
	CreateProject(ctx context.Context, p CreateProjectParams) (*Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*Project, error)
	// ListProjectIDsByOwner returns every project id owned by userID, for
	// projects.deleteAllForUser to fan out into per-project deletes.
	ListProjectIDsByOwner(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status ProjectStatus) error
	SetBootstrapSessionID(ctx context.Context, id uuid.UUID, sessionID string) error
	SetInitialPromptSent(ctx context.Context, id uuid.UUID, messageID string) error
	SetProductionFields(ctx context.Context, id uuid.UUID, f ProductionFields) error
	HardDelete(ctx context.Context, id uuid.UUID) error
}

// PortAllocator hands out the host ports a project's preview and
// session containers bind to, and the separate pool production
// deployments draw from. Implementations must not return a port
// already held by another project.
type PortAllocator interface {
	AllocateProjectPorts(ctx context.Context, projectID uuid.UUID) (previewPort, sessionPort int, err error)
	AllocateProductionPort(ctx context.Context, projectID uuid.UUID) (int, error)
}

// ProjectTemplate materializes a new project's filesystem from the
// engine's template (source scaffold, Dockerfile, compose file) and
// writes the generated configuration (ports, API key) into it.
// Implementations are expected to be idempotent: calling Materialize
// again for a directory that already exists is a no-op success, since
// project.create may be retried after partial progress.
type ProjectTemplate interface {
	Materialize(ctx context.Context, dir string, previewPort, sessionPort int, apiKey string) error
}

// Builder runs a project's production build command and reports where
// the build output landed, so production.build can hash it. The core
// treats the build command itself as opaque; a non-nil error carries
// whatever diagnostic the implementation thinks is worth surfacing in
// last_error.
type Builder interface {
	Build(ctx context.Context, projectDir string) (outputDir string, err error)
}

// ProductionWorkspace manages the hash-versioned on-disk layout a
// production deploy lives in: a versions/{hash}/ directory per build,
// and a "current" symlink production.start repoints atomically so a
// rollback (production.stop followed by a retried production.start)
// never observes a half-swapped version.
type ProductionWorkspace interface {
	// MaterializeVersion copies the project's sources, Dockerfile and
	// compose file into versions/{hash}/ under projectDir's production
	// directory and writes a .env carrying port, returning that
	// directory. Idempotent: materializing the same hash twice is a
	// no-op success.
	MaterializeVersion(ctx context.Context, projectDir, hash string, port int) (versionDir string, err error)

	// PromoteCurrent repoints the production directory's "current"
	// symlink at versionDir via rename-over, so the swap is atomic from
	// any concurrent reader's point of view.
	PromoteCurrent(ctx context.Context, projectDir, versionDir string) error

	// CleanupOldVersions removes every versions/{hash} directory except
	// the keep most recent, best-effort: a cleanup failure is logged,
	// never propagated as a handler error.
	CleanupOldVersions(ctx context.Context, projectDir string, keep int) error
}

// ExecResult is the outcome of one container-runtime invocation. The
// core treats every invocation as opaque: it consumes Success plus the
// raw output streams and never parses a command's internals.
type ExecResult struct {
	Success  bool
	Stdout   string
	Stderr   string
	ExitCode int
}

// ContainerSpec describes a single container to run, the shape
// production.start needs to start a freshly built production image.
type ContainerSpec struct {
	Name    string
	Image   string
	Port    int
	EnvFile string
	Dir     string
}

// ContainerRuntime starts, stops, inspects and removes sets of
// containers rooted at a project directory. Every method is a
// blocking, opaque command invocation; handlers never assume anything
// about the runtime beyond ExecResult.
type ContainerRuntime interface {
	ComposeUp(ctx context.Context, projectDir string) (ExecResult, error)
	ComposeStop(ctx context.Context, projectDir string) (ExecResult, error)
	ComposeDown(ctx context.Context, projectDir string, removeVolumes bool) (ExecResult, error)
	BuildImage(ctx context.Context, dir, tag string) (ExecResult, error)
	RunContainer(ctx context.Context, spec ContainerSpec) (ExecResult, error)
	RemoveContainer(ctx context.Context, name string) (ExecResult, error)
	RemoveImage(ctx context.Context, tag string) (ExecResult, error)

	// PushAuth writes apiKey into the project's running session
	// container once docker.waitReady observes both health probes up,
	// so the session server inside the container can authenticate
	// outbound calls.
	PushAuth(ctx context.Context, projectDir, apiKey string) (ExecResult, error)
}

// Prompt is the payload opencode.sendUserPrompt composes for the
// session server: text plus any staged image attachments.
type Prompt struct {
	Text   string            `json:"text"`
	Model  string            `json:"model,omitempty"`
	Images []ImageAttachment `json:"images,omitempty"`
}

// ImageAttachment is one image referenced from a prompt's staging
// file, carried as a data URL rather than a filesystem path since the
// session server and the queue process may not share a filesystem.
type ImageAttachment struct {
	Filename string `json:"filename"`
	MIME     string `json:"mime"`
	DataURL  string `json:"dataUrl"`
}

// Message is one entry from the session server's message history,
// trimmed to the fields opencode.sendUserPrompt needs to locate the
// message it just created.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionServer is the HTTP service hosting an opencode-style agent
// session per project. The core sends and parses JSON but otherwise
// treats the session server's internal state as opaque beyond "session
// exists" and "message with id X exists."
type SessionServer interface {
	CreateSession(ctx context.Context, projectID uuid.UUID) (sessionID string, err error)
	SendPromptAsync(ctx context.Context, sessionID string, prompt Prompt) error
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
}
