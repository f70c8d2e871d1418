// Package doceq is a durable, single-process job queue and orchestration
// engine. It drives multi-step pipelines (bring a project's containers
// up, wait for readiness, create an agent session, deploy a production
// build, tear everything down) by chaining small, idempotent jobs that
// enqueue their own successors.
//
// # Overview
//
// The engine separates storage (package store, with a SQL-backed
// implementation in store/sql) from orchestration (this package) from
// domain logic (package handlers). A Job (package job) is claimed under
// a time-bounded lease, heartbeated while its handler runs, and
// transitioned to a terminal state or rescheduled on completion.
//
// # Delivery Semantics
//
// The engine provides at-least-once processing. A job may be delivered
// more than once if a worker crashes, a lease expires, or a duplicate is
// submitted. Handlers must be idempotent and must treat a deleted
// project as a no-op success.
//
// # Per-Project Exclusion
//
// At most one job with a given ProjectID may be Running at any instant.
// This is enforced as a selection predicate inside Claim, not a
// database-level lock: it is advisory, and handlers must still tolerate
// brief overlap in the rare case the predicate races with a concurrent
// claim.
//
// # State Machine
//
// Jobs follow:
//
//	Queued  -> Running
//	Running -> Succeeded
//	Running -> Queued      (retry or reschedule)
//	Running -> Failed
//	Running -> Cancelled
//	Queued  -> Cancelled   (direct admin cancellation)
//
// Terminal states (Succeeded, Failed, Cancelled) are sticky; only
// DeleteJob removes a terminal row.
//
// # Retry and Reschedule
//
// When a handler returns a plain error, the job is retried with
// exponential backoff (BackoffConfig) until MaxAttempts is exhausted,
// then transitions to Failed. When a handler returns a RescheduleSignal
// (the "wait job" pattern), the job returns to Queued without consuming
// retry budget — it is not an error, just "come back later".
//
// # Concurrency Model
//
// Pool runs one cooperative scheduler loop bound to a single
// workerID, dispatching claimed jobs to a bounded internal worker pool
// (package internal). Each in-flight job gets its own heartbeat task
// that extends its lease at half the lease duration.
//
// # Recovery
//
// RecoveryLoop periodically requeues jobs whose lease has lapsed
// (crashed or stalled workers), without resetting Attempts. Lifecycle
// operations refuse to mutate a job whose locked_by no longer matches
// the caller, so a stale worker's late Complete/Fail is a silent no-op —
// this is the correctness anchor of the lease protocol.
package doceq
