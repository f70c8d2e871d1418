package sql

import "github.com/uptrace/bun"

// Store composes Enqueuer, Claimer, Lifecycle, Observer, Recovery and
// Admin onto a single *bun.DB, satisfying store.Store. Callers that
// only need one concern (a CLI reporting tool using only Observer, for
// instance) may construct the narrower type directly instead.
type Store struct {
	*Enqueuer
	*Claimer
	*Lifecycle
	*Observer
	*Recovery
	*Admin
}

// NewStore builds a Store backed by db. InitDB must have been run
// against db beforehand.
func NewStore(db *bun.DB) *Store {
	return &Store{
		Enqueuer:  NewEnqueuer(db),
		Claimer:   NewClaimer(db),
		Lifecycle: NewLifecycle(db),
		Observer:  NewObserver(db),
		Recovery:  NewRecovery(db),
		Admin:     NewAdmin(db),
	}
}
