package doceq_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq"
	"github.com/pablopunk/doceq/job"
)

func TestRecoveryLoopRecoversLapsedLease(t *testing.T) {
	st := newPoolTestStore(t)
	ctx := context.Background()

	j := &job.Job{ID: uuid.New(), Type: job.TypeProjectCreate, Payload: []byte(`{}`), MaxAttempts: 3}
	if err := st.InsertJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	claimed, err := st.AtomicClaim(ctx, time.Now(), "worker-1", time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if claimed == nil {
		t.Fatal("expected claim to succeed")
	}
	time.Sleep(5 * time.Millisecond)

	loop := doceq.NewRecoveryLoop(st, 10*time.Millisecond, slog.Default())
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := loop.Start(runCtx); err != nil {
		t.Fatal(err)
	}
	defer loop.Stop(time.Second)

	waitForState(t, st, j.ID, job.Queued)
}

func TestRecoveryLoopLifecycleErrors(t *testing.T) {
	st := newPoolTestStore(t)
	loop := doceq.NewRecoveryLoop(st, time.Second, slog.Default())

	ctx := context.Background()
	if err := loop.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := loop.Start(ctx); err == nil {
		t.Fatal("expected ErrDoubleStarted")
	}
	if err := loop.Stop(time.Second); err != nil {
		t.Fatal(err)
	}
	if err := loop.Stop(time.Second); err == nil {
		t.Fatal("expected ErrDoubleStopped")
	}
}
