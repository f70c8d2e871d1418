package sql_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq/job"
	gsql "github.com/pablopunk/doceq/store/sql"
)

func TestAtomicClaimOrdersByPriority(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	claimer := gsql.NewClaimer(db)
	ctx := context.Background()

	low := newQueuedJob(job.TypeProjectCreate, "")
	low.Priority = 0
	high := newQueuedJob(job.TypeProjectCreate, "")
	high.Priority = 10

	if err := enqueuer.InsertJob(ctx, low); err != nil {
		t.Fatal(err)
	}
	if err := enqueuer.InsertJob(ctx, high); err != nil {
		t.Fatal(err)
	}

	claimed, err := claimer.AtomicClaim(ctx, time.Now(), "worker-1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if claimed == nil || claimed.ID != high.ID {
		t.Fatalf("expected higher priority job to be claimed first, got %+v", claimed)
	}
	if claimed.Attempts != 1 {
		t.Fatalf("expected attempts to be incremented to 1, got %d", claimed.Attempts)
	}
	if claimed.State != job.Running {
		t.Fatalf("expected Running, got %s", claimed.State)
	}
}

func TestAtomicClaimRespectsRunAt(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	claimer := gsql.NewClaimer(db)
	ctx := context.Background()

	future := newQueuedJob(job.TypeProjectCreate, "")
	future.RunAt = time.Now().Add(time.Hour)
	if err := enqueuer.InsertJob(ctx, future); err != nil {
		t.Fatal(err)
	}

	claimed, err := claimer.AtomicClaim(ctx, time.Now(), "worker-1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if claimed != nil {
		t.Fatalf("expected no eligible job, got %+v", claimed)
	}
}

func TestAtomicClaimEnforcesPerProjectExclusion(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	claimer := gsql.NewClaimer(db)
	ctx := context.Background()

	projectID := uuid.New()

	first := newQueuedJob(job.TypeDockerComposeUp, "")
	first.ProjectID = &projectID
	second := newQueuedJob(job.TypeDockerWaitReady, "")
	second.ProjectID = &projectID

	if err := enqueuer.InsertJob(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := enqueuer.InsertJob(ctx, second); err != nil {
		t.Fatal(err)
	}

	claimed, err := claimer.AtomicClaim(ctx, time.Now(), "worker-1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if claimed == nil {
		t.Fatal("expected first job to be claimed")
	}

	blocked, err := claimer.AtomicClaim(ctx, time.Now(), "worker-2", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if blocked != nil {
		t.Fatalf("expected second job to remain blocked by project exclusion, got %+v", blocked)
	}
}

func TestAtomicClaimSkipsExhaustedAttempts(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	claimer := gsql.NewClaimer(db)
	lifecycle := gsql.NewLifecycle(db)
	ctx := context.Background()

	j := newQueuedJob(job.TypeProjectCreate, "")
	j.MaxAttempts = 1
	if err := enqueuer.InsertJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	claimed, err := claimer.AtomicClaim(ctx, time.Now(), "worker-1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if claimed == nil {
		t.Fatal("expected first claim to succeed")
	}

	// Return the job to Queued with its run_at already due, keeping
	// Attempts at 1, so only attempts < max_attempts can block the claim.
	if _, err := lifecycle.TransitionToQueued(ctx, claimed.ID, "worker-1", time.Now().Add(-time.Second), false, "boom", nil); err != nil {
		t.Fatal(err)
	}

	again, err := claimer.AtomicClaim(ctx, time.Now(), "worker-2", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if again != nil {
		t.Fatalf("expected no job eligible once attempts exhausted, got %+v", again)
	}
}
