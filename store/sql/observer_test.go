package sql_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq/job"
	"github.com/pablopunk/doceq/store"
	gsql "github.com/pablopunk/doceq/store/sql"
)

func TestGetJobMissing(t *testing.T) {
	db := newTestDB(t)
	observer := gsql.NewObserver(db)
	ctx := context.Background()

	got, err := observer.GetJob(ctx, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing job, got %+v", got)
	}
}

func TestListJobsFilters(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	observer := gsql.NewObserver(db)
	ctx := context.Background()

	projectID := uuid.New()
	a := newQueuedJob(job.TypeProjectCreate, "")
	a.ProjectID = &projectID
	b := newQueuedJob(job.TypeDockerComposeUp, "")

	if err := enqueuer.InsertJob(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := enqueuer.InsertJob(ctx, b); err != nil {
		t.Fatal(err)
	}

	byProject, err := observer.ListJobs(ctx, store.Filters{ProjectID: &projectID}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(byProject) != 1 || byProject[0].ID != a.ID {
		t.Fatalf("expected one job scoped to project, got %+v", byProject)
	}

	byType, err := observer.ListJobs(ctx, store.Filters{Type: job.TypeDockerComposeUp}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(byType) != 1 || byType[0].ID != b.ID {
		t.Fatalf("expected one job scoped to type, got %+v", byType)
	}
}

func TestCountJobs(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	observer := gsql.NewObserver(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := enqueuer.InsertJob(ctx, newQueuedJob(job.TypeProjectCreate, "")); err != nil {
			t.Fatal(err)
		}
	}

	count, err := observer.CountJobs(ctx, store.Filters{State: job.Queued})
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
}
