package sql_test

import (
	"context"
	"testing"
	"time"

	"github.com/pablopunk/doceq/job"
	gsql "github.com/pablopunk/doceq/store/sql"
)

func claimOne(t *testing.T, ctx context.Context, claimer *gsql.Claimer, workerID string) *job.Job {
	t.Helper()
	claimed, err := claimer.AtomicClaim(ctx, time.Now(), workerID, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if claimed == nil {
		t.Fatal("expected a job to be claimable")
	}
	return claimed
}

func TestUpdateLeaseExpiry(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	claimer := gsql.NewClaimer(db)
	lifecycle := gsql.NewLifecycle(db)
	ctx := context.Background()

	j := newQueuedJob(job.TypeProjectCreate, "")
	if err := enqueuer.InsertJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	claimed := claimOne(t, ctx, claimer, "worker-1")

	newExpiry := time.Now().Add(2 * time.Minute)
	ok, err := lifecycle.UpdateLeaseExpiry(ctx, claimed.ID, "worker-1", newExpiry)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected lease extension to succeed")
	}

	ok, err = lifecycle.UpdateLeaseExpiry(ctx, claimed.ID, "wrong-worker", newExpiry)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected lease extension by wrong worker to fail")
	}
}

func TestTransitionToTerminal(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	claimer := gsql.NewClaimer(db)
	lifecycle := gsql.NewLifecycle(db)
	observer := gsql.NewObserver(db)
	ctx := context.Background()

	j := newQueuedJob(job.TypeProjectCreate, "")
	if err := enqueuer.InsertJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	claimed := claimOne(t, ctx, claimer, "worker-1")

	ok, err := lifecycle.TransitionToTerminal(ctx, claimed.ID, "worker-1", job.Succeeded, "")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected transition to succeed")
	}

	got, err := observer.GetJob(ctx, claimed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != job.Succeeded {
		t.Fatalf("expected Succeeded, got %s", got.State)
	}
	if got.LockedBy != "" || got.LockExpiresAt != nil {
		t.Fatal("expected lease to be cleared")
	}
}

func TestTransitionToQueuedRetryKeepsAttempts(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	claimer := gsql.NewClaimer(db)
	lifecycle := gsql.NewLifecycle(db)
	observer := gsql.NewObserver(db)
	ctx := context.Background()

	j := newQueuedJob(job.TypeProjectCreate, "")
	if err := enqueuer.InsertJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	claimed := claimOne(t, ctx, claimer, "worker-1")
	if claimed.Attempts != 1 {
		t.Fatalf("expected attempts 1 after claim, got %d", claimed.Attempts)
	}

	newRunAt := time.Now().Add(2 * time.Second)
	ok, err := lifecycle.TransitionToQueued(ctx, claimed.ID, "worker-1", newRunAt, false, "boom", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected transition to succeed")
	}

	got, err := observer.GetJob(ctx, claimed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Attempts != 1 {
		t.Fatalf("expected attempts to remain 1 on retry, got %d", got.Attempts)
	}
	if got.LastError != "boom" {
		t.Fatalf("expected last_error to be recorded, got %q", got.LastError)
	}
}

func TestTransitionToQueuedRescheduleDoesNotConsumeBudget(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	claimer := gsql.NewClaimer(db)
	lifecycle := gsql.NewLifecycle(db)
	observer := gsql.NewObserver(db)
	ctx := context.Background()

	j := newQueuedJob(job.TypeDockerWaitReady, "")
	if err := enqueuer.InsertJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	claimed := claimOne(t, ctx, claimer, "worker-1")

	newRunAt := time.Now().Add(time.Second)
	ok, err := lifecycle.TransitionToQueued(ctx, claimed.ID, "worker-1", newRunAt, true, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected transition to succeed")
	}

	got, err := observer.GetJob(ctx, claimed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Attempts != 0 {
		t.Fatalf("expected attempts to be decremented back to 0 on reschedule, got %d", got.Attempts)
	}
}

func TestCancelQueued(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	lifecycle := gsql.NewLifecycle(db)
	observer := gsql.NewObserver(db)
	ctx := context.Background()

	j := newQueuedJob(job.TypeProjectCreate, "")
	if err := enqueuer.InsertJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	ok, err := lifecycle.CancelQueued(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected cancellation of queued job to succeed")
	}

	got, err := observer.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != job.Cancelled {
		t.Fatalf("expected Cancelled, got %s", got.State)
	}
	if got.CancelledAt == nil {
		t.Fatal("expected cancelled_at to be set")
	}
}

func TestCancelQueuedNoOpOnceRunning(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	claimer := gsql.NewClaimer(db)
	lifecycle := gsql.NewLifecycle(db)
	ctx := context.Background()

	j := newQueuedJob(job.TypeProjectCreate, "")
	if err := enqueuer.InsertJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	claimOne(t, ctx, claimer, "worker-1")

	ok, err := lifecycle.CancelQueued(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected CancelQueued to no-op once job is Running")
	}
}

func TestRequestCancel(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	lifecycle := gsql.NewLifecycle(db)
	observer := gsql.NewObserver(db)
	ctx := context.Background()

	j := newQueuedJob(job.TypeOpencodeSendUserPrompt, "")
	if err := enqueuer.InsertJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	if err := lifecycle.RequestCancel(ctx, j.ID); err != nil {
		t.Fatal(err)
	}

	got, err := observer.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CancelRequestedAt == nil {
		t.Fatal("expected cancel_requested_at to be set")
	}
}
