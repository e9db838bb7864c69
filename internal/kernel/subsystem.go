package kernel

import "github.com/microsim/go-traci-kernel/internal/traci"

// Subsystem is one slice of simulation state the kernel keeps current from
// step to step. Subsystems receive the protocol session as a read-only
// capability: they may issue calls over it but never close or replace it.
type Subsystem interface {
	// PassConnection hands the subsystem the live session so it can issue
	// its own subscriptions.
	PassConnection(api traci.API) error
	// Update refreshes cached state after a step. reset signals that the
	// prior step was a full reinitialization and stale caches must be
	// discarded rather than diffed against.
	Update(reset bool)
	Close() error
}
