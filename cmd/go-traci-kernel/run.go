package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/microsim/go-traci-kernel/internal/config"
	"github.com/microsim/go-traci-kernel/internal/fleet"
	"github.com/microsim/go-traci-kernel/internal/kernel"
	"github.com/microsim/go-traci-kernel/internal/metrics"
	"github.com/microsim/go-traci-kernel/internal/stats"
	"github.com/microsim/go-traci-kernel/internal/timeseries"
	"github.com/microsim/go-traci-kernel/internal/tui"
)

// runState aggregates live run state across workers for the metrics
// collector, the dashboard, and the exit summary.
type runState struct {
	runID     string
	cfg       *config.Config
	collector *metrics.Collector
	tracker   *timeseries.StepRateTracker
	stepStats *stats.StepStats

	mu             sync.Mutex
	simTime        float64
	activeVehicles int
	departed       int64
	arrived        int64
	collisions     int64
	teleports      int64
	engineStarts   int64
	startRetries   int64
	steps          int64
}

func newRunState(runID string, cfg *config.Config, collector *metrics.Collector) *runState {
	return &runState{
		runID:     runID,
		cfg:       cfg,
		collector: collector,
		tracker:   timeseries.NewStepRateTracker(),
		stepStats: stats.NewStepStats(),
	}
}

// startSampler feeds the rolling step rate into the collector once a
// second until the context ends.
func (s *runState) startSampler(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tracker.RecordSample()
				s.collector.SetStepRate(s.tracker.Rates().Avg10s)
				s.collector.Tick()
			}
		}
	}()
}

// workerFunc adapts runKernel for fleet workers.
func (s *runState) workerFunc(logger *slog.Logger) fleet.WorkerFunc {
	return func(ctx context.Context, workerID int, cfg *config.Config) error {
		err := s.runKernel(ctx, workerID, cfg, logger.With("worker", workerID))
		if err != nil && ctx.Err() == nil {
			s.collector.RecordWorkerFailure(workerID)
		}
		return err
	}
}

// runKernel drives one kernel: start, bounded step loop, teardown.
func (s *runState) runKernel(ctx context.Context, workerID int, cfg *config.Config, logger *slog.Logger) error {
	k, err := kernel.New(cfg, logger)
	if err != nil {
		return err
	}

	if err := k.Start(ctx); err != nil {
		s.collector.RecordEngineStartFailure()
		return fmt.Errorf("starting engine: %w", err)
	}
	defer k.Close()

	attempts := k.Sim.StartAttempts()
	s.collector.RecordEngineStart(attempts - 1)
	s.mu.Lock()
	s.engineStarts++
	s.startRetries += int64(attempts - 1)
	s.mu.Unlock()

	logger.Info("kernel_running",
		"attempts", attempts,
		"port", cfg.Port,
	)

	for i := 0; cfg.Steps == 0 || i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		start := time.Now()
		if err := k.Step(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		elapsed := time.Since(start)

		collided, err := k.CheckCollision()
		if err != nil {
			return err
		}

		s.noteStep(k, elapsed, collided)
	}
	return nil
}

// noteStep records one step's outcome in the collector and shared state.
func (s *runState) noteStep(k *kernel.Kernel, elapsed time.Duration, collided bool) {
	s.collector.RecordStep(elapsed)
	s.stepStats.Record(elapsed)
	s.tracker.AddSteps(1)

	departed := len(k.Simulation.DepartedIDs())
	arrived := len(k.Simulation.ArrivedIDs())
	teleports := len(k.Simulation.TeleportStartIDs())

	if collided {
		s.collector.RecordCollision()
	}
	s.collector.UpdateTrafficState(
		k.Simulation.Time(),
		k.Vehicle.Count(),
		departed,
		arrived,
		teleports,
	)

	s.mu.Lock()
	s.steps++
	s.simTime = k.Simulation.Time()
	s.activeVehicles = k.Vehicle.Count()
	s.departed += int64(departed)
	s.arrived += int64(arrived)
	s.teleports += int64(teleports)
	if collided {
		s.collisions++
	}
	s.mu.Unlock()
}

// Dashboard implements tui.StatsSource.
func (s *runState) Dashboard() tui.DashboardData {
	snap := s.stepStats.Snapshot()
	rates := s.tracker.Rates()

	s.mu.Lock()
	defer s.mu.Unlock()
	return tui.DashboardData{
		RunID:          s.runID,
		Backend:        s.cfg.Backend,
		ConfigFile:     s.cfg.ConfigFile,
		MetricsAddr:    s.cfg.MetricsAddr,
		SimTime:        s.simTime,
		Steps:          s.steps,
		TargetSteps:    s.cfg.Steps,
		StepRate:       rates.Avg10s,
		StepP50:        snap.P50,
		StepP95:        snap.P95,
		StepP99:        snap.P99,
		ActiveVehicles: s.activeVehicles,
		Departed:       s.departed,
		Arrived:        s.arrived,
		Collisions:     s.collisions,
		Teleports:      s.teleports,
		EngineStarts:   s.engineStarts,
		StartRetries:   s.startRetries,
	}
}

// printExitSummary prints a summary of the run.
func printExitSummary(cfg *config.Config, state *runState) {
	summary := state.collector.Summary()
	snap := state.stepStats.Snapshot()

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════════")
	fmt.Println("                      go-traci-kernel Exit Summary")
	fmt.Println("═══════════════════════════════════════════════════════════════════")
	fmt.Printf("Run Duration:           %s\n", formatDuration(summary.Elapsed))
	fmt.Printf("Steps Executed:         %d\n", summary.Steps)
	fmt.Printf("Collisions Detected:    %d\n", summary.Collisions)
	fmt.Printf("Peak Active Vehicles:   %d\n", summary.PeakVehicles)
	fmt.Println()

	if snap.Count > 0 {
		fmt.Println("Step Latency:")
		fmt.Printf("  P50 (median):         %s\n", snap.P50)
		fmt.Printf("  P95:                  %s\n", snap.P95)
		fmt.Printf("  P99:                  %s\n", snap.P99)
		fmt.Printf("  Max:                  %s\n", snap.Max)
		fmt.Println()
	}

	fmt.Println("Engine Lifecycle:")
	fmt.Printf("  Engine Starts:        %d\n", summary.EngineStarts)
	fmt.Printf("  Start Retries:        %d\n", summary.StartRetries)
	if summary.WorkerFailures > 0 {
		fmt.Printf("  Failed Workers:       %d (ids %v)\n",
			summary.WorkerFailures, state.collector.FailedWorkerIDs())
	}
	fmt.Println()

	fmt.Printf("Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	fmt.Println("═══════════════════════════════════════════════════════════════════")
}

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
