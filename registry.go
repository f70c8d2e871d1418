package doceq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pablopunk/doceq/job"
	"github.com/pablopunk/doceq/store"
)

// ErrCancelRequested is returned by a handler (directly, or implicitly
// via JobContext.ThrowIfCancelRequested) to signal that a running job
// observed a cooperative cancellation request. Pool treats it as
// distinct from a generic handler error: the job transitions to
// Cancelled rather than being retried.
var ErrCancelRequested = errors.New("doceq: cancel requested")

// RescheduleSignal is returned by a handler to mean "come back later",
// not "this failed". Pool returns the job to Queued after Delay
// without consuming retry budget. Construct one via JobContext.Reschedule.
// Payload, when non-nil, replaces the job's stored payload alongside
// the requeue, so a wait handler can persist its own bookkeeping (an
// attempt counter, a deadline) across the reschedule cycle without
// reaching into the store directly.
type RescheduleSignal struct {
	Delay   time.Duration
	Payload json.RawMessage
}

func (r *RescheduleSignal) Error() string {
	return fmt.Sprintf("doceq: reschedule after %s", r.Delay)
}

// AsReschedule reports whether err is (or wraps) a *RescheduleSignal,
// returning the requested delay and replacement payload (nil if the
// handler didn't change it).
func AsReschedule(err error) (time.Duration, json.RawMessage, bool) {
	var sig *RescheduleSignal
	if errors.As(err, &sig) {
		return sig.Delay, sig.Payload, true
	}
	return 0, nil, false
}

// JobContext is the immutable view of a claimed job handed to its
// Handler, plus the cooperative-cancellation and reschedule primitives
// a handler needs without reaching into the store directly.
type JobContext struct {
	// Job is a snapshot taken at claim time. Its CancelRequestedAt may
	// be stale by the time the handler observes it; call
	// ThrowIfCancelRequested to check the live value.
	Job *job.Job

	observer store.Observer
}

// ThrowIfCancelRequested re-reads the job's cancellation flag from the
// store and returns ErrCancelRequested if it has been set. Long-running
// handlers (docker.waitReady, production.build) call this between steps
// so an admin cancellation takes effect before their next step. Nothing
// else in the Pool reads the cancellation flag: the lease heartbeat
// does not, and a handler that never calls this runs to completion.
func (jc *JobContext) ThrowIfCancelRequested(ctx context.Context) error {
	current, err := jc.observer.GetJob(ctx, jc.Job.ID)
	if err != nil {
		return err
	}
	if current != nil && current.CancelRequestedAt != nil {
		return ErrCancelRequested
	}
	return nil
}

// Reschedule builds the RescheduleSignal a handler returns to ask for
// another attempt after delay, without spending retry budget. It is a
// convenience constructor; handlers may also build *RescheduleSignal
// directly.
func (jc *JobContext) Reschedule(delay time.Duration) error {
	return &RescheduleSignal{Delay: delay}
}

// RescheduleWithPayload is Reschedule plus a replacement payload,
// persisted alongside the requeue so the next invocation observes the
// handler's updated bookkeeping (e.g. an incremented reschedule
// counter) instead of the original enqueue-time payload.
func (jc *JobContext) RescheduleWithPayload(delay time.Duration, payload json.RawMessage) error {
	return &RescheduleSignal{Delay: delay, Payload: payload}
}

// Handler processes one claimed job. The context is canceled when the
// job's lease is lost or the pool is shutting down.
//
// Return nil for success. Return ErrCancelRequested (or let
// ThrowIfCancelRequested surface it) to cancel the job cooperatively.
// Return a *RescheduleSignal (via JobContext.Reschedule) to come back
// later without consuming retry budget. Any other error is treated as
// a retryable failure, subject to the job's MaxAttempts.
type Handler func(ctx context.Context, jc *JobContext) error

// Registry maps job types to their handlers. A Registry is built once
// at startup and is safe for concurrent Dispatch calls; Register is not
// safe to call concurrently with Dispatch.
type Registry struct {
	handlers map[job.Type]Handler
	observer store.Observer
}

// NewRegistry creates an empty Registry. observer is used to build each
// dispatched job's JobContext.
func NewRegistry(observer store.Observer) *Registry {
	return &Registry{
		handlers: make(map[job.Type]Handler),
		observer: observer,
	}
}

// Register binds h as the handler for t. It panics if t already has a
// handler registered, since a silent overwrite would mean two parts of
// the program disagree about what a job type does.
func (r *Registry) Register(t job.Type, h Handler) {
	if _, exists := r.handlers[t]; exists {
		panic(fmt.Sprintf("doceq: handler already registered for %s", t))
	}
	r.handlers[t] = h
}

// Dispatch looks up the handler for j.Type and invokes it with a fresh
// JobContext. It returns an error if no handler is registered for the
// job's type; Pool treats that the same as any other handler error.
func (r *Registry) Dispatch(ctx context.Context, j *job.Job) error {
	h, ok := r.handlers[j.Type]
	if !ok {
		return fmt.Errorf("doceq: no handler registered for job type %s", j.Type)
	}
	jc := &JobContext{Job: j, observer: r.observer}
	return h(ctx, jc)
}
