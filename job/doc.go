// Package job defines the durable unit of work managed by doceq.
//
// A Job carries delivery state (State, Attempts, the lease triple) and
// scheduling metadata (RunAt) alongside an opaque, type-tagged Payload.
// Unlike a transport-only message, a Job is never detached from its
// lifecycle: the same record is created, claimed, heartbeated and
// terminated in place.
//
// Job values returned by a store are snapshots. Mutating fields directly
// does not change underlying storage; transitions happen only through
// the store's Claimer/Lifecycle operations.
package job
