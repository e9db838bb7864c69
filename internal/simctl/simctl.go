package simctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/microsim/go-traci-kernel/internal/config"
	"github.com/microsim/go-traci-kernel/internal/process"
	"github.com/microsim/go-traci-kernel/internal/traci"
)

// ErrNotStarted is returned when Step or CheckCollision is called before a
// successful Start. This is a programming error in the caller, not a
// transient condition.
var ErrNotStarted = errors.New("simulation control not started")

// Supervisor is the process-lifecycle capability SimControl depends on.
type Supervisor interface {
	Spawn(ctx context.Context, builder process.CommandBuilder) (*process.Handle, error)
	Kill(handle *process.Handle)
}

// Connection is the protocol-session capability SimControl owns. State
// subsystems receive only the embedded traci.API slice of it.
type Connection interface {
	traci.API
	SetOrder(order int) error
	Step() (*traci.StepResults, error)
	Close() error
}

// Connector dials the engine's control protocol.
type Connector func(port, maxAttempts int, delay time.Duration) (Connection, error)

// DefaultConnector dials a real TraCI session.
func DefaultConnector(logger *slog.Logger) Connector {
	return func(port, maxAttempts int, delay time.Duration) (Connection, error) {
		return traci.Connect(port, maxAttempts, delay, logger)
	}
}

// SimControl starts, steps and tears down one engine instance. At most one
// live process handle and one live connection exist per instance. Not safe
// for concurrent use; parallel training uses independent instances.
type SimControl struct {
	cfg    *config.Config
	sup    Supervisor
	dial   Connector
	logger *slog.Logger

	state         State
	handle        *process.Handle
	conn          Connection
	steps         int
	startAttempts int
}

// New creates a SimControl for the given configuration.
func New(cfg *config.Config, sup Supervisor, dial Connector, logger *slog.Logger) *SimControl {
	return &SimControl{
		cfg:    cfg,
		sup:    sup,
		dial:   dial,
		logger: logger,
	}
}

// State returns the current lifecycle state.
func (s *SimControl) State() State {
	return s.state
}

// Steps returns how many steps have been executed since Start.
func (s *SimControl) Steps() int {
	return s.steps
}

// StartAttempts returns how many attempts the last Start used.
func (s *SimControl) StartAttempts() int {
	return s.startAttempts
}

// Start spawns the engine and establishes the protocol session. On any
// failure the partial process is killed before the next attempt; after the
// retry bound is exhausted the last underlying error is returned unwrapped,
// so the operator sees the real cause rather than a generic failure.
func (s *SimControl) Start(ctx context.Context) (Connection, error) {
	if s.state != StateIdle {
		return nil, fmt.Errorf("start from %s state", s.state)
	}
	s.state = StateStarting

	runner := process.NewSumoRunner(s.cfg)
	delay := NewRetryDelay(s.cfg.RetryDelay)

	var lastErr error
	for attempt := 1; attempt <= s.cfg.StartRetries; attempt++ {
		s.startAttempts = attempt
		s.logger.Info("engine_start_attempt",
			"attempt", attempt,
			"port", s.cfg.Port,
			"binary", runner.Name(),
		)

		conn, handle, err := s.tryStart(ctx, runner)
		if err == nil {
			s.conn = conn
			s.handle = handle
			s.state = StateRunning
			return conn, nil
		}

		lastErr = err
		s.logger.Warn("engine_start_attempt_failed",
			"attempt", attempt,
			"error", err,
		)

		if attempt < s.cfg.StartRetries {
			select {
			case <-ctx.Done():
				s.state = StateIdle
				return nil, ctx.Err()
			case <-time.After(delay.Next()):
			}
		}
	}

	s.state = StateIdle
	return nil, lastErr
}

// tryStart runs one spawn+connect attempt. On failure whatever process
// handle exists is killed before returning, so a retry never races a
// half-started engine on the same port.
func (s *SimControl) tryStart(ctx context.Context, runner *process.SumoRunner) (Connection, *process.Handle, error) {
	handle, err := s.sup.Spawn(ctx, runner)
	if err != nil {
		s.sup.Kill(handle)
		return nil, nil, err
	}

	// Give the engine a moment to open its listening socket.
	select {
	case <-ctx.Done():
		s.sup.Kill(handle)
		return nil, nil, ctx.Err()
	case <-time.After(s.cfg.EffectiveSettleDelay()):
	}

	conn, err := s.dial(s.cfg.Port, s.cfg.ConnectAttempts, s.cfg.ConnectDelay)
	if err != nil {
		s.sup.Kill(handle)
		return nil, nil, err
	}

	if err := s.prime(conn); err != nil {
		if cerr := conn.Close(); cerr != nil {
			s.logger.Debug("connection_close_failed", "error", cerr)
		}
		s.sup.Kill(handle)
		return nil, nil, err
	}

	return conn, handle, nil
}

// prime declares the client order, registers the simulation-level signal
// set, and takes one initial step so subscription values exist before the
// first Update.
func (s *SimControl) prime(conn Connection) error {
	if err := conn.SetOrder(0); err != nil {
		return fmt.Errorf("declaring client order: %w", err)
	}
	if err := conn.SubscribeSim(traci.SimVariables); err != nil {
		return fmt.Errorf("subscribing simulation signals: %w", err)
	}
	if _, err := conn.Step(); err != nil {
		return fmt.Errorf("initial step: %w", err)
	}
	return nil
}

// Step advances the engine by exactly one configured step length.
func (s *SimControl) Step() error {
	if s.state != StateRunning {
		return ErrNotStarted
	}
	if _, err := s.conn.Step(); err != nil {
		return err
	}
	s.steps++
	return nil
}

// CheckCollision reports whether a collision occurred in the last step.
// The engine's teleport-start list is the signal: a gridlocked or colliding
// vehicle gets teleported, and the id list is already on hand from the
// step's subscription payload, so no extra round trip is needed.
func (s *SimControl) CheckCollision() (bool, error) {
	if s.state != StateRunning {
		return false, ErrNotStarted
	}
	return len(s.conn.Results().Sim.TeleportStartIDs) != 0, nil
}

// Update refreshes internal per-step bookkeeping. The protocol client
// already caches the step's subscription payload, so there is nothing to
// pull here; the hook exists for step-ordering symmetry with the state
// subsystems.
func (s *SimControl) Update(reset bool) {
	if reset {
		s.logger.Debug("simctl_reset")
	}
}

// Close tears the session and the engine process down, best-effort. Errors
// are logged, never returned: shutdown must complete even over a dead
// socket or an already-exited process. Safe to call from any state.
func (s *SimControl) Close() {
	if s.state == StateClosed {
		return
	}

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("connection_close_failed", "error", err)
		}
		s.conn = nil
	}

	s.sup.Kill(s.handle)
	s.handle = nil
	s.state = StateClosed

	s.logger.Info("simctl_closed", "steps", s.steps)
}
