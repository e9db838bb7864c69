package traci

import "fmt"

// SimValues holds the simulation-level subscription payload for one step.
type SimValues struct {
	Time             float64
	DeltaT           float64
	DepartedIDs      []string
	ArrivedIDs       []string
	TeleportStartIDs []string
}

// VehicleValues holds the per-vehicle subscription payload for one step.
type VehicleValues struct {
	Speed    float64
	Position [2]float64
	Angle    float64
}

// TLValues holds the per-traffic-light subscription payload for one step.
type TLValues struct {
	State string // red-yellow-green string, e.g. "GrGr"
	Phase int
}

// StepResults aggregates every subscription response delivered with one
// simulation step.
type StepResults struct {
	Sim           SimValues
	Vehicles      map[string]VehicleValues
	TrafficLights map[string]TLValues
}

func newStepResults() *StepResults {
	return &StepResults{
		Vehicles:      make(map[string]VehicleValues),
		TrafficLights: make(map[string]TLValues),
	}
}

// parseSubscriptionResponse decodes one subscription response command into
// the results set.
func (res *StepResults) parseSubscriptionResponse(id byte, payload *reader) error {
	objectID, err := payload.readString()
	if err != nil {
		return fmt.Errorf("subscription 0x%02x: object id: %w", id, err)
	}
	count, err := payload.readByte()
	if err != nil {
		return fmt.Errorf("subscription 0x%02x: variable count: %w", id, err)
	}

	for i := 0; i < int(count); i++ {
		varID, err := payload.readByte()
		if err != nil {
			return err
		}
		status, err := payload.readByte()
		if err != nil {
			return err
		}
		value, err := payload.readTypedValue()
		if err != nil {
			return fmt.Errorf("subscription 0x%02x var 0x%02x: %w", id, varID, err)
		}
		if status != StatusOK {
			// The engine reports per-variable failures (e.g. a vehicle that
			// left between subscribe and step) inline; skip the value.
			continue
		}

		switch id {
		case ResponseSubscribeSimVariable:
			res.applySimVar(varID, value)
		case ResponseSubscribeVehicleVariable:
			res.applyVehicleVar(objectID, varID, value)
		case ResponseSubscribeTLVariable:
			res.applyTLVar(objectID, varID, value)
		}
	}
	return nil
}

func (res *StepResults) applySimVar(varID byte, v typedValue) {
	switch varID {
	case VarTimeStep:
		res.Sim.Time = v.d
	case VarDeltaT:
		res.Sim.DeltaT = v.d
	case VarDepartedVehicleIDs:
		res.Sim.DepartedIDs = v.list
	case VarArrivedVehicleIDs:
		res.Sim.ArrivedIDs = v.list
	case VarTeleportStartingVehIDs:
		res.Sim.TeleportStartIDs = v.list
	}
}

func (res *StepResults) applyVehicleVar(id string, varID byte, v typedValue) {
	veh := res.Vehicles[id]
	switch varID {
	case VarSpeed:
		veh.Speed = v.d
	case VarPosition:
		veh.Position = v.d2
	case VarAngle:
		veh.Angle = v.d
	}
	res.Vehicles[id] = veh
}

func (res *StepResults) applyTLVar(id string, varID byte, v typedValue) {
	tl := res.TrafficLights[id]
	switch varID {
	case VarTLState:
		tl.State = v.s
	case VarTLPhase:
		tl.Phase = int(v.i)
	}
	res.TrafficLights[id] = tl
}
