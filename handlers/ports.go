package handlers

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// SequentialPortAllocator is the default PortAllocator: it hands out
// ports from two disjoint ranges (project ports two at a time, one
// production port at a time) in increasing order, guarded by a mutex
// since Pool may dispatch project.create and production.start for
// different projects concurrently.
type SequentialPortAllocator struct {
	mu sync.Mutex

	nextProjectPort    int
	nextProductionPort int
}

// NewSequentialPortAllocator starts project ports at projectBase
// (allocating two per call: preview, then session) and production
// ports at productionBase.
func NewSequentialPortAllocator(projectBase, productionBase int) *SequentialPortAllocator {
	return &SequentialPortAllocator{
		nextProjectPort:    projectBase,
		nextProductionPort: productionBase,
	}
}

// AllocateProjectPorts returns the next unused preview/session port
// pair. projectID is accepted to satisfy PortAllocator but unused: this
// allocator does not persist assignments across restarts, matching the
// teacher's in-memory counters.
func (a *SequentialPortAllocator) AllocateProjectPorts(ctx context.Context, projectID uuid.UUID) (int, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	preview := a.nextProjectPort
	session := a.nextProjectPort + 1
	a.nextProjectPort += 2
	return preview, session, nil
}

// AllocateProductionPort returns the next unused production port.
func (a *SequentialPortAllocator) AllocateProductionPort(ctx context.Context, projectID uuid.UUID) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	port := a.nextProductionPort
	a.nextProductionPort++
	return port, nil
}
