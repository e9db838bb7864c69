// Package main provides the go-traci-kernel CLI entry point.
//
// go-traci-kernel drives a traffic-simulation engine over its TraCI control
// socket: it spawns the engine, subscribes to simulation state, advances it
// step by step, and reports collisions and traffic metrics.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/microsim/go-traci-kernel/internal/config"
	"github.com/microsim/go-traci-kernel/internal/fleet"
	"github.com/microsim/go-traci-kernel/internal/logging"
	"github.com/microsim/go-traci-kernel/internal/metrics"
	"github.com/microsim/go-traci-kernel/internal/preflight"
	"github.com/microsim/go-traci-kernel/internal/process"
	"github.com/microsim/go-traci-kernel/internal/tui"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-traci-kernel
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-traci-kernel %s\n", version)
			return 0
		}
	}

	// Optional .env alongside the working directory, for TRACI_KERNEL_TEST
	// and scenario defaults in dev setups.
	for _, envFile := range []string{".env", "../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// When the TUI is enabled, suppress logs to keep the screen clean.
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	// Handle -print-cmd mode
	if cfg.PrintCmd {
		printEngineCommand(cfg)
		return 0
	}

	runID := uuid.NewString()

	logger.Info("starting",
		"version", version,
		"run_id", runID,
		"backend", cfg.Backend,
		"config_file", cfg.ConfigFile,
		"port", cfg.Port,
		"workers", cfg.Workers,
		"steps", cfg.Steps,
		"metrics_addr", cfg.MetricsAddr,
	)

	if !cfg.TUIEnabled {
		printBanner(cfg)
	}

	if !cfg.SkipPreflight {
		result := preflight.RunAll(cfg.Workers, cfg.Port, cfg.EngineBinary())
		if !cfg.TUIEnabled {
			preflight.PrintResults(result)
		}
		if !result.Passed {
			fmt.Fprintln(os.Stderr, "preflight checks failed (use -skip-preflight to override)")
			return 1
		}
	}

	collector := metrics.NewCollector(metrics.CollectorConfig{
		Version:    version,
		Backend:    cfg.Backend,
		ConfigFile: cfg.ConfigFile,
		RunID:      runID,
		Steps:      cfg.Steps,
		Workers:    cfg.Workers,
	})

	server := metrics.NewServer(cfg.MetricsAddr, logger)
	server.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state := newRunState(runID, cfg, collector)
	state.startSampler(ctx)

	var runErr error
	if cfg.Workers > 1 {
		f := fleet.New(cfg, state.workerFunc(logger), logger)
		runErr = f.Run(ctx)
	} else {
		runErr = runSingle(ctx, cfg, logger, state)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics_server_shutdown_error", "error", err)
	}

	if cfg.EmissionPath != "" {
		snapshot := filepath.Join(cfg.EmissionPath, cfg.Name+"-metrics.prom")
		if err := metrics.WriteDefaultSnapshot(snapshot); err != nil {
			logger.Warn("metrics_snapshot_failed", "path", snapshot, "error", err)
		} else {
			logger.Info("metrics_snapshot_written", "path", snapshot)
		}
	}

	printExitSummary(cfg, state)

	if runErr != nil && ctx.Err() == nil {
		logger.Error("run_failed", "error", runErr)
		return 1
	}
	return 0
}

// runSingle drives one kernel, optionally behind the dashboard.
func runSingle(ctx context.Context, cfg *config.Config, logger *slog.Logger, state *runState) error {
	if !cfg.TUIEnabled {
		return state.runKernel(ctx, 0, cfg, logger)
	}

	program := tea.NewProgram(tui.New(tui.Config{Source: state}), tea.WithAltScreen())

	kernelDone := make(chan error, 1)
	kernelCtx, cancelKernel := context.WithCancel(ctx)
	go func() {
		kernelDone <- state.runKernel(kernelCtx, 0, cfg, logger)
		tui.SendQuit(program)
	}()

	if _, err := program.Run(); err != nil {
		cancelKernel()
		<-kernelDone
		return fmt.Errorf("dashboard: %w", err)
	}

	// Dashboard exited first (user quit): stop the kernel too.
	cancelKernel()
	return <-kernelDone
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                        go-traci-kernel                           ║")
	fmt.Println("║        Traffic Simulation Control over the TraCI Protocol         ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Network:     %s\n", cfg.ConfigFile)
	fmt.Printf("  Engine:      %s (port %d)\n", cfg.EngineBinary(), cfg.Port)
	fmt.Printf("  Step length: %.3fs\n", cfg.StepLength)
	if cfg.Steps > 0 {
		fmt.Printf("  Steps:       %d\n", cfg.Steps)
	} else {
		fmt.Println("  Steps:       unlimited")
	}
	if cfg.Workers > 1 {
		fmt.Printf("  Workers:     %d (ports %d-%d)\n", cfg.Workers, cfg.Port, cfg.Port+cfg.Workers-1)
	}
	fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}

// printEngineCommand prints the engine command that would be spawned.
func printEngineCommand(cfg *config.Config) {
	runner := process.NewSumoRunner(cfg)
	fmt.Println("# Engine command that would be run:")
	fmt.Println()
	fmt.Println(runner.CommandString())
}
