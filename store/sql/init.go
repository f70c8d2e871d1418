package sql

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
)

func createJobsTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*jobModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func createSettingsTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*settingsModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func seedSettings(ctx context.Context, db bun.IDB) error {
	_, err := db.NewInsert().
		Model(&settingsModel{ID: 1, Paused: false, Concurrency: 2}).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	return err
}

func createRunIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*jobModel)(nil)).
		Index("idx_jobs_state_run_at").
		Column("state", "run_at").
		IfNotExists().
		Exec(ctx)
	return err
}

func createLeaseIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*jobModel)(nil)).
		Index("idx_jobs_state_lock_expires").
		Column("state", "lock_expires_at").
		IfNotExists().
		Exec(ctx)
	return err
}

func createProjectIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*jobModel)(nil)).
		Index("idx_jobs_project_state").
		Column("project_id", "state").
		IfNotExists().
		Exec(ctx)
	return err
}

// createDedupeIndex enforces the "at most one active job per dedupe
// key" invariant at the database level: a partial unique index that
// only applies while dedupe_active is true, so a terminal job's key
// can be reused by a later Enqueue.
func createDedupeIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*jobModel)(nil)).
		Index("idx_jobs_dedupe_active").
		Column("dedupe_key").
		Unique().
		Where("dedupe_active = TRUE AND dedupe_key != ''").
		IfNotExists().
		Exec(ctx)
	return err
}

func createUpdatedIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*jobModel)(nil)).
		Index("idx_jobs_state_updated").
		Column("state", "updated_at").
		IfNotExists().
		Exec(ctx)
	return err
}

func initDB(ctx context.Context, db *bun.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	steps := []func(context.Context, bun.IDB) error{
		createJobsTable,
		createSettingsTable,
		seedSettings,
		createRunIndex,
		createLeaseIndex,
		createProjectIndex,
		createDedupeIndex,
		createUpdatedIndex,
	}
	for _, step := range steps {
		if err := step(ctx, tx); err != nil {
			return errors.Join(err, tx.Rollback())
		}
	}
	return tx.Commit()
}

// InitDB initializes the database schema required by the SQL backend:
// the jobs table, the queue_settings singleton (seeded with defaults)
// and the five indexes the claim and recovery queries depend on.
//
// InitDB is idempotent and may be safely called multiple times. It
// does not drop or modify existing tables beyond creating missing
// objects.
func InitDB(ctx context.Context, db *bun.DB) error {
	return initDB(ctx, db)
}

// MustInitDB behaves like InitDB but panics if initialization fails.
// It is intended for application bootstrap code where failure to
// initialize schema is considered unrecoverable.
func MustInitDB(ctx context.Context, db *bun.DB) {
	if err := initDB(ctx, db); err != nil {
		panic(err)
	}
}
