package kernel

import (
	"log/slog"

	"github.com/microsim/go-traci-kernel/internal/traci"
)

// SimulationMeta tracks simulation-level metadata: the engine clock, the
// step delta, and the per-step departed/arrived/teleport id lists. The
// underlying simulation subscription is established during session priming,
// so this subsystem only mirrors the values already delivered per step.
type SimulationMeta struct {
	api    traci.API
	logger *slog.Logger

	current traci.SimValues

	totalDeparted  int
	totalArrived   int
	totalTeleports int
}

func NewSimulationMeta(logger *slog.Logger) *SimulationMeta {
	return &SimulationMeta{logger: logger}
}

func (m *SimulationMeta) PassConnection(api traci.API) error {
	m.api = api
	return nil
}

func (m *SimulationMeta) Update(reset bool) {
	if reset {
		m.current = traci.SimValues{}
		m.totalDeparted = 0
		m.totalArrived = 0
		m.totalTeleports = 0
	}
	m.current = m.api.Results().Sim
	m.totalDeparted += len(m.current.DepartedIDs)
	m.totalArrived += len(m.current.ArrivedIDs)
	m.totalTeleports += len(m.current.TeleportStartIDs)
}

// Close logs the run summary while the session is still live. Called before
// the connection is torn down.
func (m *SimulationMeta) Close() error {
	m.logger.Info("simulation_summary",
		"sim_time", m.current.Time,
		"departed_total", m.totalDeparted,
		"arrived_total", m.totalArrived,
		"teleports_total", m.totalTeleports,
	)
	return nil
}

// Time returns the engine clock in seconds.
func (m *SimulationMeta) Time() float64 {
	return m.current.Time
}

// DeltaT returns the engine's step length in seconds.
func (m *SimulationMeta) DeltaT() float64 {
	return m.current.DeltaT
}

func (m *SimulationMeta) DepartedIDs() []string {
	return m.current.DepartedIDs
}

func (m *SimulationMeta) ArrivedIDs() []string {
	return m.current.ArrivedIDs
}

func (m *SimulationMeta) TeleportStartIDs() []string {
	return m.current.TeleportStartIDs
}

func (m *SimulationMeta) TotalDeparted() int  { return m.totalDeparted }
func (m *SimulationMeta) TotalArrived() int   { return m.totalArrived }
func (m *SimulationMeta) TotalTeleports() int { return m.totalTeleports }
