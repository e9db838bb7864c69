// Package kernel aggregates the simulation-control plane and the state
// subsystems behind a single facade with fixed construction, update and
// teardown ordering.
package kernel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/microsim/go-traci-kernel/internal/config"
	"github.com/microsim/go-traci-kernel/internal/logging"
	"github.com/microsim/go-traci-kernel/internal/process"
	"github.com/microsim/go-traci-kernel/internal/simctl"
	"github.com/microsim/go-traci-kernel/internal/traci"
)

// BackendTraCI is the only engine backend currently registered.
const BackendTraCI = "traci"

// backends maps backend selectors to their session connectors.
var backends = map[string]func(*slog.Logger) simctl.Connector{
	BackendTraCI: simctl.DefaultConnector,
}

// ConfigurationError reports an unrecognized backend selector. It is raised
// at construction, before any process side effects.
type ConfigurationError struct {
	Backend string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unknown simulation backend %q", e.Backend)
}

// State is the kernel lifecycle: Uninitialized until a connection has been
// distributed to every subsystem, Connected while stepping, Closed after
// teardown. There is no transition back.
type State int

const (
	Uninitialized State = iota
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Kernel owns one SimControl and the three state subsystems. The subsystem
// ordering is fixed: connection hand-off and per-step updates run vehicle,
// then traffic-light, then simulation metadata, because later subsystems
// may assume earlier ones have already established their subscriptions.
type Kernel struct {
	cfg    *config.Config
	logger *slog.Logger

	Sim          *simctl.SimControl
	Vehicle      *VehicleState
	TrafficLight *TrafficLightState
	Simulation   *SimulationMeta

	subsystems []Subsystem
	state      State
}

// New builds a kernel with the real process supervisor and protocol
// connector for the configured backend.
func New(cfg *config.Config, logger *slog.Logger) (*Kernel, error) {
	factory, ok := backends[cfg.Backend]
	if !ok {
		return nil, &ConfigurationError{Backend: cfg.Backend}
	}
	sup := process.NewSupervisor(logger)
	sup.SetStderrHandler(logging.NewEngineLogHandler(cfg.Port, logger, cfg.Verbose))
	return NewWith(cfg, sup, factory(logger), logger)
}

// NewWith builds a kernel around an explicit supervisor and connector.
func NewWith(cfg *config.Config, sup simctl.Supervisor, dial simctl.Connector, logger *slog.Logger) (*Kernel, error) {
	if _, ok := backends[cfg.Backend]; !ok {
		return nil, &ConfigurationError{Backend: cfg.Backend}
	}

	k := &Kernel{
		cfg:          cfg,
		logger:       logger,
		Sim:          simctl.New(cfg, sup, dial, logger),
		Vehicle:      NewVehicleState(logger),
		TrafficLight: NewTrafficLightState(cfg.TrafficLightIDs),
		Simulation:   NewSimulationMeta(logger),
	}
	k.subsystems = []Subsystem{k.Vehicle, k.TrafficLight, k.Simulation}
	return k, nil
}

// State returns the kernel lifecycle state.
func (k *Kernel) State() State {
	return k.state
}

// Start spawns the engine, establishes the session, and distributes the
// connection to every subsystem.
func (k *Kernel) Start(ctx context.Context) error {
	conn, err := k.Sim.Start(ctx)
	if err != nil {
		return err
	}
	if err := k.PassConnection(conn); err != nil {
		k.Sim.Close()
		return err
	}
	// The priming step already carries subscription data; fold it into the
	// subsystem caches so state is readable before the first Step.
	k.Update(true)
	return nil
}

// PassConnection forwards the session to each subsystem in the fixed order
// so each may perform its own subscriptions.
func (k *Kernel) PassConnection(api traci.API) error {
	for _, sub := range k.subsystems {
		if err := sub.PassConnection(api); err != nil {
			return err
		}
	}
	k.state = Connected
	return nil
}

// Step advances the engine by one step and refreshes all subsystem caches.
func (k *Kernel) Step() error {
	if err := k.Sim.Step(); err != nil {
		return err
	}
	k.Update(false)
	return nil
}

// Update refreshes subsystem-cached state after a step, always in the order
// vehicle, traffic-light, simulation metadata, then sim-control.
func (k *Kernel) Update(reset bool) {
	for _, sub := range k.subsystems {
		sub.Update(reset)
	}
	k.Sim.Update(reset)
}

// CheckCollision reports whether the last step recorded a collision.
func (k *Kernel) CheckCollision() (bool, error) {
	return k.Sim.CheckCollision()
}

// Close closes each subsystem once in the fixed order, ending with the
// simulation metadata flush while the session is still live, then tears
// down the session and the engine process. Teardown errors are logged,
// never propagated.
func (k *Kernel) Close() {
	if k.state == Closed {
		return
	}
	if k.state == Connected {
		for _, sub := range k.subsystems {
			if err := sub.Close(); err != nil {
				k.logger.Warn("subsystem_close_failed", "error", err)
			}
		}
	}
	k.Sim.Close()
	k.state = Closed
}
