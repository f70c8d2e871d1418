package sql_test

import (
	"context"
	"testing"
	"time"

	"github.com/pablopunk/doceq/job"
	"github.com/pablopunk/doceq/store"
	gsql "github.com/pablopunk/doceq/store/sql"
)

func TestDeleteJobRequiresTerminal(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	admin := gsql.NewAdmin(db)
	ctx := context.Background()

	j := newQueuedJob(job.TypeProjectCreate, "")
	if err := enqueuer.InsertJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	if err := admin.DeleteJob(ctx, j.ID); err != store.ErrNotTerminal {
		t.Fatalf("expected ErrNotTerminal, got %v", err)
	}
}

func TestDeleteJobsByState(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	claimer := gsql.NewClaimer(db)
	lifecycle := gsql.NewLifecycle(db)
	admin := gsql.NewAdmin(db)
	observer := gsql.NewObserver(db)
	ctx := context.Background()

	j := newQueuedJob(job.TypeProjectCreate, "")
	if err := enqueuer.InsertJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	claimed, err := claimer.AtomicClaim(ctx, time.Now(), "worker-1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lifecycle.TransitionToTerminal(ctx, claimed.ID, "worker-1", job.Succeeded, ""); err != nil {
		t.Fatal(err)
	}

	n, err := admin.DeleteJobsByState(ctx, job.Succeeded)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row deleted, got %d", n)
	}

	got, err := observer.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected job to be gone")
	}

	if _, err := admin.DeleteJobsByState(ctx, job.Queued); err != store.ErrNotTerminal {
		t.Fatalf("expected ErrNotTerminal for non-terminal state, got %v", err)
	}
}

func TestRunNow(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	admin := gsql.NewAdmin(db)
	observer := gsql.NewObserver(db)
	ctx := context.Background()

	j := newQueuedJob(job.TypeProjectCreate, "")
	j.RunAt = time.Now().Add(time.Hour)
	if err := enqueuer.InsertJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	ok, err := admin.RunNow(ctx, j.ID, now)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected RunNow to affect the queued job")
	}

	got, err := observer.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.RunAt.After(now.Add(time.Second)) {
		t.Fatalf("expected run_at to be brought forward, got %s", got.RunAt)
	}
}

func TestForceUnlock(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	claimer := gsql.NewClaimer(db)
	admin := gsql.NewAdmin(db)
	observer := gsql.NewObserver(db)
	ctx := context.Background()

	j := newQueuedJob(job.TypeProjectCreate, "")
	if err := enqueuer.InsertJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	if _, err := claimer.AtomicClaim(ctx, time.Now(), "worker-1", time.Hour); err != nil {
		t.Fatal(err)
	}

	if err := admin.ForceUnlock(ctx, j.ID, time.Now(), "stuck behind a stale lease"); err != nil {
		t.Fatal(err)
	}

	got, err := observer.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != job.Failed {
		t.Fatalf("expected Failed, got %s", got.State)
	}
	if got.LockedBy != "" {
		t.Fatal("expected lease to be cleared")
	}
}

func TestSettings(t *testing.T) {
	db := newTestDB(t)
	admin := gsql.NewAdmin(db)
	ctx := context.Background()

	settings, err := admin.GetSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if settings.Paused {
		t.Fatal("expected default unpaused")
	}
	if settings.Concurrency != 2 {
		t.Fatalf("expected default concurrency 2, got %d", settings.Concurrency)
	}

	if err := admin.SetPaused(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := admin.SetConcurrency(ctx, 5); err != nil {
		t.Fatal(err)
	}

	updated, err := admin.GetSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !updated.Paused || updated.Concurrency != 5 {
		t.Fatalf("expected updated settings, got %+v", updated)
	}
}
