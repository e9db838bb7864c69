package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/microsim/go-traci-kernel/internal/logging"
)

// killGracePeriod is how long Kill waits after SIGTERM before escalating to
// SIGKILL on the process group.
const killGracePeriod = 2 * time.Second

// SpawnError reports a failure to launch the engine binary.
type SpawnError struct {
	Binary string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning %s: %v", e.Binary, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Handle is the OS-level handle of a spawned engine process.
// It is owned exclusively by the Supervisor that created it.
type Handle struct {
	PID  int
	PGID int

	cmd     *exec.Cmd
	done    chan struct{}
	exitErr error
	started time.Time
}

// Uptime returns how long the process has been (or was) alive.
func (h *Handle) Uptime() time.Duration {
	return time.Since(h.started)
}

// Exited reports whether the process has been reaped.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Supervisor spawns the engine binary in its own process group and can
// forcibly terminate it together with any children it forked.
type Supervisor struct {
	logger *slog.Logger

	// Optional sink for the engine's stderr.
	stderrHandler *logging.EngineLogHandler

	mu sync.Mutex
}

// NewSupervisor creates a Supervisor logging through the given logger.
func NewSupervisor(logger *slog.Logger) *Supervisor {
	return &Supervisor{logger: logger}
}

// SetStderrHandler routes the engine's stderr through the given handler.
// Must be called before Spawn.
func (s *Supervisor) SetStderrHandler(h *logging.EngineLogHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stderrHandler = h
}

// Spawn launches the engine described by the builder in a new process group.
// The returned Handle is live until the process exits; a reaper goroutine
// collects the exit status so the child never zombies.
func (s *Supervisor) Spawn(ctx context.Context, builder CommandBuilder) (*Handle, error) {
	cmd, err := builder.BuildCommand(ctx)
	if err != nil {
		return nil, &SpawnError{Binary: builder.Name(), Err: err}
	}

	// Own process group so the engine and anything it forks can be
	// signaled together.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	s.mu.Lock()
	stderrHandler := s.stderrHandler
	s.mu.Unlock()

	if stderrHandler != nil {
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return nil, &SpawnError{Binary: builder.Name(), Err: fmt.Errorf("stderr pipe: %w", err)}
		}
		go stderrHandler.HandleReader(stderr)
	}

	if err := cmd.Start(); err != nil {
		s.logger.Error("engine_spawn_failed",
			"binary", builder.Name(),
			"error", err,
		)
		return nil, &SpawnError{Binary: builder.Name(), Err: err}
	}

	handle := &Handle{
		PID:     cmd.Process.Pid,
		cmd:     cmd,
		done:    make(chan struct{}),
		started: time.Now(),
	}

	if pgid, err := syscall.Getpgid(handle.PID); err == nil {
		handle.PGID = pgid
	} else {
		handle.PGID = handle.PID
	}

	s.logger.Info("engine_started",
		"binary", builder.Name(),
		"pid", handle.PID,
		"pgid", handle.PGID,
	)

	go func() {
		handle.exitErr = cmd.Wait()
		close(handle.done)
		s.logger.Info("engine_exited",
			"pid", handle.PID,
			"exit_code", extractExitCode(handle.exitErr),
			"uptime", handle.Uptime().String(),
		)
	}()

	return handle, nil
}

// Kill terminates the process group of the given handle. It never returns an
// error: the process may already be dead, and teardown must not block a retry
// loop. Failures are logged and swallowed. Kill(nil) is a no-op.
func (s *Supervisor) Kill(handle *Handle) {
	if handle == nil {
		s.logger.Debug("engine_kill_skipped", "reason", "no handle")
		return
	}
	if handle.Exited() {
		s.logger.Debug("engine_kill_skipped", "pid", handle.PID, "reason", "already exited")
		return
	}

	if err := syscall.Kill(-handle.PGID, syscall.SIGTERM); err != nil {
		s.logger.Warn("engine_sigterm_failed",
			"pid", handle.PID,
			"pgid", handle.PGID,
			"error", err,
		)
		// Best effort against the process itself.
		_ = handle.cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-handle.done:
		return
	case <-time.After(killGracePeriod):
	}

	s.logger.Warn("engine_force_kill",
		"pid", handle.PID,
		"pgid", handle.PGID,
	)
	if err := syscall.Kill(-handle.PGID, syscall.SIGKILL); err != nil {
		s.logger.Warn("engine_sigkill_failed",
			"pid", handle.PID,
			"error", err,
		)
		_ = handle.cmd.Process.Kill()
	}

	<-handle.done
}

// Wait blocks until the process exits and returns its exit code.
func (s *Supervisor) Wait(handle *Handle) int {
	<-handle.done
	return extractExitCode(handle.exitErr)
}

// extractExitCode extracts the exit code from a Wait() error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	// Unknown error, assume exit code 1
	return 1
}
