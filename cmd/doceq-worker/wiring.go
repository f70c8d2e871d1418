package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/pablopunk/doceq"
	"github.com/pablopunk/doceq/handlers"
	sqlstore "github.com/pablopunk/doceq/store/sql"
	"github.com/uptrace/bun"
)

// openDB opens the SQLite database at cfg.DBPath and ensures both the
// jobs and projects schemas exist. It is shared by every subcommand
// (serve and the jobs/queue admin commands) so opening a database is
// exercised by one code path.
func openDB(ctx context.Context, cfg workerConfig) (*bun.DB, error) {
	db, err := sqlstore.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := sqlstore.InitDB(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init job schema: %w", err)
	}
	if err := sqlstore.InitProjectsTable(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init project schema: %w", err)
	}
	return db, nil
}

// newEngine builds a doceq.Engine over a freshly opened database,
// without constructing the handler registry or pool. Admin subcommands
// (jobs, queue) only need this much.
func newEngine(ctx context.Context, cfg workerConfig) (*doceq.Engine, *bun.DB, error) {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	st := sqlstore.NewStore(db)
	return doceq.NewEngine(st), db, nil
}

// buildHandlers assembles the Handlers bundle from cfg's external
// collaborators, using the default implementations (default
// ContainerRuntime, ProjectTemplate, ProductionWorkspace, Builder,
// SessionServer, PortAllocator) that shell out / call HTTP / touch the
// filesystem directly, matching the spec's framing of those systems as
// opaque collaborators.
func buildHandlers(engine *doceq.Engine, projects handlers.ProjectStore, cfg workerConfig, log *slog.Logger) *handlers.Handlers {
	httpClient := &http.Client{}
	return &handlers.Handlers{
		Engine:   engine,
		Projects: projects,
		Runtime:  handlers.NewExecRuntime(),
		Sessions: handlers.NewHTTPSessionServer(cfg.SessionServerURL, httpClient),
		Ports:    handlers.NewSequentialPortAllocator(cfg.ProjectPortBase, cfg.ProductionPortBase),
		Template: &handlers.DirTemplate{SourceDir: cfg.TemplateDir},
		Builder: &handlers.CommandBuilder{
			Command:      cfg.BuildCommand,
			Args:         cfg.BuildArgs,
			OutputSubdir: cfg.BuildOutputSubdir,
		},
		Workspace:              &handlers.DirProductionWorkspace{},
		HTTPClient:             httpClient,
		Log:                    log,
		ImageRepo:              cfg.ImageRepo,
		KeepProductionVersions: cfg.KeepVersions,
		DataDir:                cfg.DataDir,
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
