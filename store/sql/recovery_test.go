package sql_test

import (
	"context"
	"testing"
	"time"

	"github.com/pablopunk/doceq/job"
	gsql "github.com/pablopunk/doceq/store/sql"
)

func TestExpireLeases(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	claimer := gsql.NewClaimer(db)
	recovery := gsql.NewRecovery(db)
	observer := gsql.NewObserver(db)
	ctx := context.Background()

	j := newQueuedJob(job.TypeProjectCreate, "")
	if err := enqueuer.InsertJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	claimed, err := claimer.AtomicClaim(ctx, time.Now(), "worker-1", time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if claimed == nil {
		t.Fatal("expected job to be claimed")
	}

	time.Sleep(5 * time.Millisecond)

	n, err := recovery.ExpireLeases(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 job recovered, got %d", n)
	}

	got, err := observer.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != job.Queued {
		t.Fatalf("expected Queued after recovery, got %s", got.State)
	}
	if got.Attempts != 1 {
		t.Fatalf("expected attempts to remain 1 after recovery, got %d", got.Attempts)
	}

	again, err := recovery.ExpireLeases(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if again != 0 {
		t.Fatalf("expected idempotent second sweep to affect 0 rows, got %d", again)
	}
}

func TestExpireLeasesIgnoresFreshLeases(t *testing.T) {
	db := newTestDB(t)
	enqueuer := gsql.NewEnqueuer(db)
	claimer := gsql.NewClaimer(db)
	recovery := gsql.NewRecovery(db)
	ctx := context.Background()

	j := newQueuedJob(job.TypeProjectCreate, "")
	if err := enqueuer.InsertJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	if _, err := claimer.AtomicClaim(ctx, time.Now(), "worker-1", time.Hour); err != nil {
		t.Fatal(err)
	}

	n, err := recovery.ExpireLeases(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected fresh lease to be left alone, got %d recovered", n)
	}
}
