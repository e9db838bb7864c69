// Package process builds and supervises the external simulation engine process.
package process

import (
	"context"
	"os/exec"
)

// CommandBuilder creates an executable command for the engine.
// This interface keeps the supervisor decoupled from engine specifics.
type CommandBuilder interface {
	// BuildCommand returns a ready-to-start command for the engine.
	BuildCommand(ctx context.Context) (*exec.Cmd, error)

	// Name returns a human-readable name for this engine type.
	Name() string
}
