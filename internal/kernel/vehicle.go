package kernel

import (
	"log/slog"
	"sort"

	"github.com/microsim/go-traci-kernel/internal/traci"
)

// VehicleState tracks the set of vehicles currently in the network and
// their per-step kinematics. Vehicles are discovered through the
// simulation-level departed list; each new arrival gets its own variable
// subscription so later steps deliver speed, position and angle without
// extra round trips.
type VehicleState struct {
	api    traci.API
	logger *slog.Logger

	active     map[string]struct{}
	kinematics map[string]traci.VehicleValues
}

func NewVehicleState(logger *slog.Logger) *VehicleState {
	return &VehicleState{
		logger:     logger,
		active:     make(map[string]struct{}),
		kinematics: make(map[string]traci.VehicleValues),
	}
}

func (v *VehicleState) PassConnection(api traci.API) error {
	v.api = api
	return nil
}

func (v *VehicleState) Update(reset bool) {
	if reset {
		v.active = make(map[string]struct{})
		v.kinematics = make(map[string]traci.VehicleValues)
	}

	res := v.api.Results()
	for _, id := range res.Sim.DepartedIDs {
		if _, ok := v.active[id]; ok {
			continue
		}
		v.active[id] = struct{}{}
		if err := v.api.SubscribeVehicle(id, traci.VehicleVariables); err != nil {
			// The vehicle may already have left again within the same step.
			v.logger.Warn("vehicle_subscribe_failed", "vehicle", id, "error", err)
		}
	}
	for _, id := range res.Sim.ArrivedIDs {
		delete(v.active, id)
		delete(v.kinematics, id)
	}

	for id, values := range res.Vehicles {
		if _, ok := v.active[id]; ok {
			v.kinematics[id] = values
		}
	}
}

func (v *VehicleState) Close() error {
	return nil
}

// IDs returns the active vehicle ids in sorted order.
func (v *VehicleState) IDs() []string {
	ids := make([]string, 0, len(v.active))
	for id := range v.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (v *VehicleState) Count() int {
	return len(v.active)
}

func (v *VehicleState) Speed(id string) (float64, bool) {
	values, ok := v.kinematics[id]
	return values.Speed, ok
}

func (v *VehicleState) Position(id string) ([2]float64, bool) {
	values, ok := v.kinematics[id]
	return values.Position, ok
}

func (v *VehicleState) Angle(id string) (float64, bool) {
	values, ok := v.kinematics[id]
	return values.Angle, ok
}
