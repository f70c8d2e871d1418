package doceq

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pablopunk/doceq/internal"
	"github.com/pablopunk/doceq/job"
	"github.com/pablopunk/doceq/store"
)

// Pool coordinates claiming, dispatching, heartbeating and finalizing
// jobs. It implements an at-least-once processing model:
//
//  1. Periodically claim up to Concurrency jobs per poll tick.
//  2. Dispatch each claimed job to its registered Handler.
//  3. Extend the job's lease while the handler runs.
//  4. On success, mark the job Succeeded.
//  5. On a reschedule signal, return the job to Queued without
//     consuming retry budget.
//  6. On a plain error, retry with backoff until MaxAttempts is
//     exhausted, then mark the job Failed.
//  7. On ErrCancelRequested, mark the job Cancelled.
//
// Pool does not guarantee exactly-once delivery; handlers must be
// idempotent. Pool has a strict lifecycle: Start may only be called
// once, and Stop gracefully shuts down polling and in-flight handlers.
type Pool struct {
	lcBase
	store    store.Store
	registry *Registry
	pollTask internal.TimerTask
	pool     *internal.WorkerPool[*job.Job]
	log      *slog.Logger

	workerID     string
	concurrency  int
	lease        time.Duration
	halfLease    time.Duration
	pollInterval time.Duration
	backoff      backoffCounter

	// schedulerRestarts and schedulerGaveUp implement the crash/
	// supervisor policy around the scheduler loop; both are only ever
	// touched from pollTask's single goroutine, so no lock is needed.
	schedulerRestarts int
	schedulerGaveUp   bool
}

const (
	maxSchedulerRestarts   = 3
	schedulerBaseBackoffMs = 500
	schedulerMaxBackoffMs  = 5000
)

// NewPool creates a Pool bound to a single workerID. It is not started
// automatically; call Start to begin claiming and dispatching jobs.
func NewPool(workerID string, st store.Store, registry *Registry, cfg Config, log *slog.Logger) *Pool {
	return &Pool{
		store:        st,
		registry:     registry,
		pool:         internal.NewWorkerPool[*job.Job](cfg.Concurrency, cfg.Concurrency, log),
		log:          log,
		workerID:     workerID,
		concurrency:  cfg.Concurrency,
		lease:        cfg.LeaseDuration,
		halfLease:    cfg.LeaseDuration / 2,
		pollInterval: cfg.PollInterval,
		backoff:      backoffCounter{cfg.Backoff},
	}
}

// poll makes up to p.concurrency AtomicClaim calls per tick and hands
// each claimed job to the worker pool; it does not count the jobs
// already in flight. Push blocks while every worker is busy and the
// hand-off buffer (Concurrency deep) is full, so a claimed job can wait
// there, leased but not yet heartbeated, until a worker takes it. poll
// stops early once the store is paused or a claim finds nothing eligible.
func (p *Pool) poll(ctx context.Context) {
	settings, err := p.store.GetSettings(ctx)
	if err != nil {
		p.log.Error("failed to read queue settings", "err", err)
		return
	}
	if settings.Paused {
		return
	}
	for i := 0; i < p.concurrency; i++ {
		claimed, err := p.store.AtomicClaim(ctx, time.Now(), p.workerID, p.lease)
		if err != nil {
			p.log.Error("claim failed", "err", err)
			return
		}
		if claimed == nil {
			return
		}
		if err := job.ValidatePayload(claimed.Type, claimed.Payload); err != nil {
			p.log.Error("claimed job failed payload validation", "id", claimed.ID, "type", claimed.Type, "err", err)
			if _, tErr := p.store.TransitionToTerminal(ctx, claimed.ID, p.workerID, job.Failed, err.Error()); tErr != nil {
				p.log.Error("cannot fail invalid job", "id", claimed.ID, "err", tErr)
			}
			continue
		}
		if !p.pool.Push(claimed) {
			p.log.Debug("job push interrupted by shutdown", "id", claimed.ID)
			return
		}
	}
}

// schedulerRestartDelay returns the backoff before the scheduler loop's
// restart'th restart: min(5000, 500*2^(restart-1)) ms.
func schedulerRestartDelay(restart int) time.Duration {
	ms := schedulerBaseBackoffMs << (restart - 1)
	if ms > schedulerMaxBackoffMs {
		ms = schedulerMaxBackoffMs
	}
	return time.Duration(ms) * time.Millisecond
}

// supervisedPoll wraps poll with the §4.4 crash/supervisor policy: a
// panic inside a tick is recovered and logged, and the scheduler loop
// is restarted after an exponential backoff. After maxSchedulerRestarts
// restarts the scheduler gives up permanently and logs a fatal
// condition; it never claims again for the life of this Pool.
// Individual job task failures never reach here — they run inside the
// separate WorkerPool and are handled entirely by handle.
func (p *Pool) supervisedPoll(ctx context.Context) {
	if p.schedulerGaveUp {
		return
	}
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		p.schedulerRestarts++
		if p.schedulerRestarts > maxSchedulerRestarts {
			p.schedulerGaveUp = true
			p.log.Error("scheduler loop panicked past max restarts, giving up claiming new work", "restarts", p.schedulerRestarts, "panic", r)
			return
		}
		delay := schedulerRestartDelay(p.schedulerRestarts)
		p.log.Error("scheduler loop panicked, restarting", "restart", p.schedulerRestarts, "delay", delay, "panic", r)
		time.Sleep(delay)
	}()
	p.poll(ctx)
}

func dispatchAsync(ctx context.Context, registry *Registry, j *job.Job) <-chan error {
	ret := make(chan error, 1)
	go func() {
		ret <- registry.Dispatch(ctx, j)
	}()
	return ret
}

// runWithHeartbeat dispatches j and extends its lease at half the
// lease interval while the handler runs. If the lease is lost (another
// worker recovered it out from under us), the handler's context is
// canceled and ErrLockLost is returned so handle treats it as already
// gone rather than retrying.
func (p *Pool) runWithHeartbeat(ctx context.Context, j *job.Job) error {
	wrapped, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := dispatchAsync(wrapped, p.registry, j)
	timer := time.NewTimer(p.halfLease)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			ok, err := p.store.UpdateLeaseExpiry(ctx, j.ID, p.workerID, time.Now().Add(p.lease))
			if err != nil {
				cancel()
				return err
			}
			if !ok {
				cancel()
				return ErrLockLost
			}
			timer.Reset(p.halfLease)
		case err := <-errCh:
			return err
		}
	}
}

func (p *Pool) handle(ctx context.Context, j *job.Job) {
	err := p.runWithHeartbeat(ctx, j)
	if err == nil {
		if _, tErr := p.store.TransitionToTerminal(ctx, j.ID, p.workerID, job.Succeeded, ""); tErr != nil {
			p.log.Error("cannot complete job", "id", j.ID, "err", tErr)
		}
		return
	}
	if errors.Is(err, ErrLockLost) {
		p.log.Warn("job lease lost mid-handler", "id", j.ID)
		return
	}
	if errors.Is(err, ErrCancelRequested) {
		if _, tErr := p.store.TransitionToTerminal(ctx, j.ID, p.workerID, job.Cancelled, ""); tErr != nil {
			p.log.Error("cannot cancel job", "id", j.ID, "err", tErr)
		}
		return
	}
	if delay, newPayload, ok := AsReschedule(err); ok {
		if _, tErr := p.store.TransitionToQueued(ctx, j.ID, p.workerID, time.Now().Add(delay), true, "", newPayload); tErr != nil {
			p.log.Error("cannot reschedule job", "id", j.ID, "err", tErr)
		}
		return
	}
	if j.Attempts >= j.MaxAttempts {
		if _, tErr := p.store.TransitionToTerminal(ctx, j.ID, p.workerID, job.Failed, err.Error()); tErr != nil {
			p.log.Error("cannot fail job", "id", j.ID, "err", tErr)
		}
		return
	}
	delay := p.backoff.next(j.Attempts)
	if _, tErr := p.store.TransitionToQueued(ctx, j.ID, p.workerID, time.Now().Add(delay), false, err.Error(), nil); tErr != nil {
		p.log.Error("cannot retry job", "id", j.ID, "err", tErr)
	}
}

// Start begins background polling and processing of jobs.
//
// Start returns ErrDoubleStarted if the pool has already been started.
func (p *Pool) Start(ctx context.Context) error {
	if err := p.tryStart(); err != nil {
		return err
	}
	p.pool.Start(ctx, p.handle)
	p.pollTask.Start(ctx, p.supervisedPoll, p.pollInterval)
	return nil
}

func (p *Pool) doStop() internal.DoneChan {
	first := p.pollTask.Stop()
	second := p.pool.Stop()
	return internal.Combine(first, second)
}

// Stop initiates graceful shutdown: polling stops, the internal pool
// is canceled, and Stop waits for in-flight handlers to finish or the
// timeout to elapse.
//
// Stop returns ErrStopTimeout if shutdown does not complete within
// timeout (background goroutines may still be terminating), and
// ErrDoubleStopped if the pool is not running.
func (p *Pool) Stop(timeout time.Duration) error {
	return p.tryStop(timeout, p.doStop)
}

// ErrLockLost is returned internally when a job's lease was lost to
// another worker mid-handler; it is not surfaced to callers of Start.
var ErrLockLost = errors.New("doceq: lock lost")
