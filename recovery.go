package doceq

import (
	"context"
	"log/slog"
	"time"

	"github.com/pablopunk/doceq/internal"
	"github.com/pablopunk/doceq/store"
)

// RecoveryLoop periodically requeues jobs whose lease has lapsed:
// crashed or stalled workers leave a job Running with a
// lock_expires_at in the past, and ExpireLeases returns it to Queued
// without resetting Attempts or LastError.
//
// RecoveryLoop does not participate in job dispatch; it only repairs
// store state so a fresh Pool can reclaim abandoned work. It is the
// correctness anchor that makes a crashed worker's jobs eventually
// progress again instead of sitting leased forever.
//
// RecoveryLoop has a strict lifecycle:
//   - Start may only be called once.
//   - Stop must be called to terminate the loop, and waits for the
//     in-flight sweep to finish or the timeout to expire.
type RecoveryLoop struct {
	lcBase
	recovery store.Recovery
	task     internal.TimerTask
	log      *slog.Logger
	interval time.Duration
}

// NewRecoveryLoop creates a RecoveryLoop that sweeps recovery at
// interval. It is not started automatically; call Start.
func NewRecoveryLoop(recovery store.Recovery, interval time.Duration, log *slog.Logger) *RecoveryLoop {
	return &RecoveryLoop{
		recovery: recovery,
		log:      log,
		interval: interval,
	}
}

func (rl *RecoveryLoop) sweep(ctx context.Context) {
	n, err := rl.recovery.ExpireLeases(ctx, time.Now())
	if err != nil {
		rl.log.Error("lease recovery sweep failed", "err", err)
		return
	}
	if n > 0 {
		rl.log.Info("recovered jobs with lapsed leases", "count", n)
	}
}

// Start begins periodic execution of the recovery sweep.
//
// Start returns ErrDoubleStarted if the loop has already been started.
func (rl *RecoveryLoop) Start(ctx context.Context) error {
	if err := rl.tryStart(); err != nil {
		return err
	}
	rl.task.Start(ctx, rl.sweep, rl.interval)
	return nil
}

// Stop terminates the background recovery task.
//
// Stop waits until the task finishes or the specified timeout expires.
// If shutdown does not complete within the timeout, ErrStopTimeout is
// returned. Stop returns ErrDoubleStopped if the loop is not running.
func (rl *RecoveryLoop) Stop(timeout time.Duration) error {
	return rl.tryStop(timeout, rl.task.Stop)
}
