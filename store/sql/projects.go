package sql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq/handlers"
	"github.com/uptrace/bun"
)

// projectModel is the bun row shape backing handlers.Project. It lives
// in the same database as the jobs table: the spec frames the project
// store as an external collaborator, but a single-process worker
// binary needs a concrete one to be runnable, and SQLite is already
// the store's own persistence choice.
type projectModel struct {
	bun.BaseModel `bun:"table:projects,alias:p"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	OwnerUserID uuid.UUID `bun:"owner_user_id,type:uuid,notnull"`
	Status      string    `bun:"status,notnull,default:'created'"`
	Dir         string    `bun:"dir,notnull,default:''"`
	PreviewPort int       `bun:"preview_port,notnull,default:0"`
	SessionPort int       `bun:"session_port,notnull,default:0"`
	APIKey      string    `bun:"api_key,notnull,default:''"`

	BootstrapSessionID string `bun:"bootstrap_session_id,notnull,default:''"`
	InitialPromptSent  bool   `bun:"initial_prompt_sent,notnull,default:false"`
	InitialMessageID   string `bun:"initial_message_id,notnull,default:''"`

	ProductionHash   string `bun:"production_hash,notnull,default:''"`
	ProductionPort   int    `bun:"production_port,notnull,default:0"`
	ProductionURL    string `bun:"production_url,notnull,default:''"`
	ProductionStatus string `bun:"production_status,notnull,default:''"`
	ProductionError  string `bun:"production_error,notnull,default:''"`
}

func (pm *projectModel) toProject() *handlers.Project {
	return &handlers.Project{
		ID:                 pm.ID,
		OwnerUserID:        pm.OwnerUserID,
		Status:             handlers.ProjectStatus(pm.Status),
		Dir:                pm.Dir,
		PreviewPort:        pm.PreviewPort,
		SessionPort:        pm.SessionPort,
		APIKey:             pm.APIKey,
		BootstrapSessionID: pm.BootstrapSessionID,
		InitialPromptSent:  pm.InitialPromptSent,
		InitialMessageID:   pm.InitialMessageID,
		ProductionHash:     pm.ProductionHash,
		ProductionPort:     pm.ProductionPort,
		ProductionURL:      pm.ProductionURL,
		ProductionStatus:   handlers.ProductionStatus(pm.ProductionStatus),
		ProductionError:    pm.ProductionError,
	}
}

// createProjectsTable creates the projects table used by Projects.
func createProjectsTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*projectModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// Projects is the default SQL-backed handlers.ProjectStore. It is a
// concrete implementation of what the spec treats as an external
// collaborator, letting cmd/doceq-worker run end to end against a
// single SQLite file shared with the jobs store.
type Projects struct {
	db *bun.DB
}

// NewProjects builds a Projects store backed by db. The caller must
// have run InitProjectsTable against db beforehand.
func NewProjects(db *bun.DB) *Projects {
	return &Projects{db: db}
}

// InitProjectsTable creates the projects table if it does not already
// exist. It is idempotent and safe to call alongside InitDB.
func InitProjectsTable(ctx context.Context, db *bun.DB) error {
	return createProjectsTable(ctx, db)
}

// CreateProject inserts the project row project.create materializes
// once it has allocated ports and written the on-disk configuration.
// Idempotent: inserting the same id twice (a retried project.create)
// returns the already-stored row instead of erroring.
func (p *Projects) CreateProject(ctx context.Context, params handlers.CreateProjectParams) (*handlers.Project, error) {
	model := &projectModel{
		ID:          params.ID,
		OwnerUserID: params.OwnerUserID,
		Status:      string(handlers.ProjectCreated),
		Dir:         params.Dir,
		PreviewPort: params.PreviewPort,
		SessionPort: params.SessionPort,
		APIKey:      params.APIKey,
	}
	_, err := p.db.NewInsert().
		Model(model).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return p.GetProject(ctx, params.ID)
}

// GetProject returns the project identified by id, or (nil, nil) if it
// does not exist (or was hard-deleted mid-pipeline), per the
// ProjectStore contract handlers rely on to treat a vanished project
// as a no-op success.
func (p *Projects) GetProject(ctx context.Context, id uuid.UUID) (*handlers.Project, error) {
	var model projectModel
	err := p.db.NewSelect().Model(&model).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return model.toProject(), nil
}

// ListProjectIDsByOwner returns every project id owned by userID, for
// projects.deleteAllForUser to fan out into per-project deletes.
func (p *Projects) ListProjectIDsByOwner(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.NewSelect().
		Model((*projectModel)(nil)).
		Column("id").
		Where("owner_user_id = ?", userID).
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateStatus moves a project's status field. It is a no-op (no
// error) if the project no longer exists.
func (p *Projects) UpdateStatus(ctx context.Context, id uuid.UUID, status handlers.ProjectStatus) error {
	_, err := p.db.NewUpdate().
		Model((*projectModel)(nil)).
		Set("status = ?", string(status)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// SetBootstrapSessionID persists the session id opencode.sessionCreate
// obtained from the session server.
func (p *Projects) SetBootstrapSessionID(ctx context.Context, id uuid.UUID, sessionID string) error {
	_, err := p.db.NewUpdate().
		Model((*projectModel)(nil)).
		Set("bootstrap_session_id = ?", sessionID).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// SetInitialPromptSent marks the initial prompt delivered and records
// the user message id opencode.sendUserPrompt located.
func (p *Projects) SetInitialPromptSent(ctx context.Context, id uuid.UUID, messageID string) error {
	_, err := p.db.NewUpdate().
		Model((*projectModel)(nil)).
		Set("initial_prompt_sent = TRUE").
		Set("initial_message_id = ?", messageID).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// SetProductionFields commits the production.build/start/waitReady
// attributes in a single call, so a handler does not need four
// round-trips to update hash, port, url and status together.
func (p *Projects) SetProductionFields(ctx context.Context, id uuid.UUID, f handlers.ProductionFields) error {
	_, err := p.db.NewUpdate().
		Model((*projectModel)(nil)).
		Set("production_hash = ?", f.ProductionHash).
		Set("production_port = ?", f.ProductionPort).
		Set("production_url = ?", f.ProductionURL).
		Set("production_status = ?", string(f.ProductionStatus)).
		Set("production_error = ?", f.ProductionError).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// HardDelete removes the project row outright. project.delete calls
// this as its final, critical step; a failure here must propagate so
// the job retries rather than leaving an orphaned row.
func (p *Projects) HardDelete(ctx context.Context, id uuid.UUID) error {
	_, err := p.db.NewDelete().
		Model((*projectModel)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

var _ handlers.ProjectStore = (*Projects)(nil)
