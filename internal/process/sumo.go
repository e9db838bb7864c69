package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/microsim/go-traci-kernel/internal/config"
)

// SumoRunner implements CommandBuilder for the SUMO engine.
type SumoRunner struct {
	cfg *config.Config
}

// NewSumoRunner creates a new SUMO command builder with the given configuration.
func NewSumoRunner(cfg *config.Config) *SumoRunner {
	return &SumoRunner{cfg: cfg}
}

// Name returns the engine binary name for the configured render mode.
func (r *SumoRunner) Name() string {
	return r.cfg.EngineBinary()
}

// BuildCommand creates an exec.Cmd for the engine with all configured options.
// If an emission output path is configured, its directory is created here.
func (r *SumoRunner) BuildCommand(ctx context.Context) (*exec.Cmd, error) {
	if r.cfg.EmissionPath != "" {
		if err := os.MkdirAll(r.cfg.EmissionPath, 0o755); err != nil {
			return nil, fmt.Errorf("creating emission path: %w", err)
		}
	}
	cmd := exec.CommandContext(ctx, r.cfg.EngineBinary(), r.buildArgs()...)
	return cmd, nil
}

// buildArgs constructs the engine command-line arguments.
func (r *SumoRunner) buildArgs() []string {
	cfg := r.cfg

	args := []string{
		"-c", cfg.ConfigFile,
		"--remote-port", strconv.Itoa(cfg.Port),
		"--num-clients", strconv.Itoa(cfg.NumClients),
		"--step-length", strconv.FormatFloat(cfg.StepLength, 'f', -1, 64),
	}

	if cfg.NoStepLog {
		args = append(args, "--no-step-log")
	}

	if cfg.LateralResolution > 0 {
		args = append(args, "--lateral-resolution",
			strconv.FormatFloat(cfg.LateralResolution, 'f', -1, 64))
	}

	if cfg.EmissionPath != "" {
		args = append(args, "--emission-output", r.EmissionFile())
	}

	if cfg.OvertakeRight {
		args = append(args, "--lanechange.overtake-right", "true")
	}

	if cfg.Seed >= 0 {
		args = append(args, "--seed", strconv.FormatInt(cfg.Seed, 10))
	}

	if !cfg.PrintWarnings {
		args = append(args, "--no-warnings", "true")
	}

	// Gridlocked vehicles are teleported after this many seconds; the
	// teleport-start list doubles as the collision signal downstream.
	args = append(args, "--time-to-teleport",
		strconv.Itoa(int(cfg.TeleportTime.Seconds())))

	args = append(args, "--collision.check-junctions", "true")

	return args
}

// EmissionFile returns the emission output file path for this run.
func (r *SumoRunner) EmissionFile() string {
	return filepath.Join(r.cfg.EmissionPath, r.cfg.Name+"-emission.xml")
}

// CommandString returns the command that would be executed (for -print-cmd).
func (r *SumoRunner) CommandString() string {
	return r.cfg.EngineBinary() + " " + strings.Join(r.buildArgs(), " ")
}
