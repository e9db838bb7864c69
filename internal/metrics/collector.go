// Package metrics provides Prometheus metrics for go-traci-kernel.
//
// All metrics are aggregate per process; in fleet mode each worker labels
// its series with its worker id.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// --- Run overview ---
var (
	kernelInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "traci_kernel_info",
			Help: "Information about the run (value always 1)",
		},
		[]string{"version", "backend", "config_file", "run_id"},
	)

	kernelTargetSteps = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "traci_kernel_target_steps",
			Help: "Configured number of steps per kernel (0 = unlimited)",
		},
	)

	kernelWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "traci_kernel_workers",
			Help: "Configured number of parallel kernels",
		},
	)

	kernelElapsedSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "traci_kernel_elapsed_seconds",
			Help: "Wall-clock seconds since the run started",
		},
	)
)

// --- Engine lifecycle ---
var (
	engineStartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "traci_kernel_engine_starts_total",
			Help: "Successful engine starts",
		},
	)

	engineStartRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "traci_kernel_engine_start_retries_total",
			Help: "Failed engine start attempts that were retried",
		},
	)

	engineStartFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "traci_kernel_engine_start_failures_total",
			Help: "Engine starts abandoned after exhausting the retry bound",
		},
	)

	workerFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "traci_kernel_worker_failures_total",
			Help: "Fleet workers that terminated with an error",
		},
	)
)

// --- Stepping ---
var (
	stepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "traci_kernel_steps_total",
			Help: "Simulation steps executed",
		},
	)

	stepDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "traci_kernel_step_duration_seconds",
			Help:    "Wall-clock duration of one simulation step round trip",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 100us .. ~3.2s
		},
	)

	stepsPerSecond = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "traci_kernel_steps_per_second",
			Help: "Current step rate over a short rolling window",
		},
	)

	simTimeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "traci_kernel_sim_time_seconds",
			Help: "Engine simulation clock",
		},
	)
)

// --- Traffic state ---
var (
	activeVehicles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "traci_kernel_active_vehicles",
			Help: "Vehicles currently in the network",
		},
	)

	departedVehiclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "traci_kernel_departed_vehicles_total",
			Help: "Vehicles that entered the network",
		},
	)

	arrivedVehiclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "traci_kernel_arrived_vehicles_total",
			Help: "Vehicles that reached their destination",
		},
	)

	collisionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "traci_kernel_collisions_total",
			Help: "Steps whose teleport-start list was non-empty",
		},
	)

	teleportsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "traci_kernel_teleports_total",
			Help: "Vehicles that started teleporting",
		},
	)
)

// Collector manages all Prometheus metrics for one run.
type Collector struct {
	startTime time.Time

	mu             sync.Mutex
	steps          int64
	collisions     int64
	starts         int64
	retries        int64
	peakVehicles   int
	workerFailures map[int]int64
}

// CollectorConfig holds run identity and sizing for the collector.
type CollectorConfig struct {
	Version    string
	Backend    string
	ConfigFile string
	RunID      string
	Steps      int
	Workers    int
}

// NewCollector creates a collector on the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		startTime:      time.Now(),
		workerFailures: make(map[int]int64),
	}

	registry.MustRegister(
		kernelInfo,
		kernelTargetSteps,
		kernelWorkers,
		kernelElapsedSeconds,

		engineStartsTotal,
		engineStartRetriesTotal,
		engineStartFailuresTotal,
		workerFailuresTotal,

		stepsTotal,
		stepDurationSeconds,
		stepsPerSecond,
		simTimeSeconds,

		activeVehicles,
		departedVehiclesTotal,
		arrivedVehiclesTotal,
		collisionsTotal,
		teleportsTotal,
	)

	kernelInfo.WithLabelValues(cfg.Version, cfg.Backend, cfg.ConfigFile, cfg.RunID).Set(1)
	kernelTargetSteps.Set(float64(cfg.Steps))
	kernelWorkers.Set(float64(cfg.Workers))

	return c
}

// RecordEngineStart records one successful start and the retries it took.
func (c *Collector) RecordEngineStart(retries int) {
	engineStartsTotal.Inc()
	engineStartRetriesTotal.Add(float64(retries))

	c.mu.Lock()
	c.starts++
	c.retries += int64(retries)
	c.mu.Unlock()
}

// RecordEngineStartFailure records a start abandoned after exhausting the
// retry bound.
func (c *Collector) RecordEngineStartFailure() {
	engineStartFailuresTotal.Inc()
}

// RecordStep records one executed step and its round-trip duration.
func (c *Collector) RecordStep(duration time.Duration) {
	stepsTotal.Inc()
	stepDurationSeconds.Observe(duration.Seconds())

	c.mu.Lock()
	c.steps++
	c.mu.Unlock()
}

// RecordCollision records a step whose teleport-start list was non-empty.
func (c *Collector) RecordCollision() {
	collisionsTotal.Inc()

	c.mu.Lock()
	c.collisions++
	c.mu.Unlock()
}

// RecordWorkerFailure records a fleet worker that terminated with an error.
func (c *Collector) RecordWorkerFailure(workerID int) {
	workerFailuresTotal.Inc()

	c.mu.Lock()
	c.workerFailures[workerID]++
	c.mu.Unlock()
}

// UpdateTrafficState refreshes the traffic gauges and counters after a step.
func (c *Collector) UpdateTrafficState(simTime float64, vehicles, departed, arrived, teleports int) {
	simTimeSeconds.Set(simTime)
	activeVehicles.Set(float64(vehicles))
	departedVehiclesTotal.Add(float64(departed))
	arrivedVehiclesTotal.Add(float64(arrived))
	teleportsTotal.Add(float64(teleports))

	c.mu.Lock()
	if vehicles > c.peakVehicles {
		c.peakVehicles = vehicles
	}
	c.mu.Unlock()
}

// SetStepRate publishes the current rolling step rate.
func (c *Collector) SetStepRate(rate float64) {
	stepsPerSecond.Set(rate)
}

// Tick refreshes the elapsed-time gauge.
func (c *Collector) Tick() {
	kernelElapsedSeconds.Set(time.Since(c.startTime).Seconds())
}

// Summary is the end-of-run report printed at exit.
type Summary struct {
	Elapsed        time.Duration
	Steps          int64
	Collisions     int64
	EngineStarts   int64
	StartRetries   int64
	PeakVehicles   int
	WorkerFailures int
}

// Summary captures the run totals tracked by the collector.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Summary{
		Elapsed:        time.Since(c.startTime),
		Steps:          c.steps,
		Collisions:     c.collisions,
		EngineStarts:   c.starts,
		StartRetries:   c.retries,
		PeakVehicles:   c.peakVehicles,
		WorkerFailures: len(c.workerFailures),
	}
}

// FailedWorkerIDs returns the ids of workers that recorded failures.
func (c *Collector) FailedWorkerIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.workerFailures))
	for id := range c.workerFailures {
		ids = append(ids, strconv.Itoa(id))
	}
	return ids
}
