package doceq_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq"
	"github.com/pablopunk/doceq/job"
	gsql "github.com/pablopunk/doceq/store/sql"
)

func newPoolTestStore(t *testing.T) *gsql.Store {
	t.Helper()
	db, err := gsql.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if err := gsql.InitDB(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return gsql.NewStore(db)
}

func newTestConfig() doceq.Config {
	cfg := doceq.DefaultConfig()
	cfg.Concurrency = 1
	cfg.PollInterval = 10 * time.Millisecond
	cfg.LeaseDuration = 200 * time.Millisecond
	cfg.Backoff.InitialInterval = 10 * time.Millisecond
	cfg.Backoff.MaxInterval = 50 * time.Millisecond
	return cfg
}

func TestPoolProcessesJobToSuccess(t *testing.T) {
	st := newPoolTestStore(t)
	registry := doceq.NewRegistry(st)

	called := make(chan struct{}, 1)
	registry.Register(job.TypeProjectCreate, func(ctx context.Context, jc *doceq.JobContext) error {
		called <- struct{}{}
		return nil
	})

	pool := doceq.NewPool("worker-1", st, registry, newTestConfig(), slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pool.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer pool.Stop(time.Second)

	j := &job.Job{ID: uuid.New(), Type: job.TypeProjectCreate, Payload: []byte(`{}`), MaxAttempts: 3}
	if err := st.InsertJob(context.Background(), j); err != nil {
		t.Fatal(err)
	}

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}

	waitForState(t, st, j.ID, job.Succeeded)
}

func TestPoolRetriesThenSucceeds(t *testing.T) {
	st := newPoolTestStore(t)
	registry := doceq.NewRegistry(st)

	var calls atomic.Int32
	registry.Register(job.TypeProjectCreate, func(ctx context.Context, jc *doceq.JobContext) error {
		if calls.Add(1) < 2 {
			return errors.New("transient failure")
		}
		return nil
	})

	pool := doceq.NewPool("worker-1", st, registry, newTestConfig(), slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pool.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer pool.Stop(time.Second)

	j := &job.Job{ID: uuid.New(), Type: job.TypeProjectCreate, Payload: []byte(`{}`), MaxAttempts: 5}
	if err := st.InsertJob(context.Background(), j); err != nil {
		t.Fatal(err)
	}

	waitForState(t, st, j.ID, job.Succeeded)
}

func TestPoolFailsAfterMaxAttempts(t *testing.T) {
	st := newPoolTestStore(t)
	registry := doceq.NewRegistry(st)

	registry.Register(job.TypeProjectCreate, func(ctx context.Context, jc *doceq.JobContext) error {
		return errors.New("permanent failure")
	})

	pool := doceq.NewPool("worker-1", st, registry, newTestConfig(), slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pool.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer pool.Stop(time.Second)

	j := &job.Job{ID: uuid.New(), Type: job.TypeProjectCreate, Payload: []byte(`{}`), MaxAttempts: 2}
	if err := st.InsertJob(context.Background(), j); err != nil {
		t.Fatal(err)
	}

	waitForState(t, st, j.ID, job.Failed)
}

func TestPoolRescheduleDoesNotConsumeBudget(t *testing.T) {
	st := newPoolTestStore(t)
	registry := doceq.NewRegistry(st)

	var calls atomic.Int32
	registry.Register(job.TypeDockerWaitReady, func(ctx context.Context, jc *doceq.JobContext) error {
		if calls.Add(1) < 3 {
			return jc.Reschedule(10 * time.Millisecond)
		}
		return nil
	})

	pool := doceq.NewPool("worker-1", st, registry, newTestConfig(), slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pool.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer pool.Stop(time.Second)

	j := &job.Job{ID: uuid.New(), Type: job.TypeDockerWaitReady, Payload: []byte(`{}`), MaxAttempts: 2}
	if err := st.InsertJob(context.Background(), j); err != nil {
		t.Fatal(err)
	}

	waitForState(t, st, j.ID, job.Succeeded)
}

func waitForState(t *testing.T, st *gsql.Store, id uuid.UUID, want job.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := st.GetJob(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if got != nil && got.State == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach state %s in time", id, want)
}
