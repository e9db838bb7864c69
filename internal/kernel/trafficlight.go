package kernel

import (
	"fmt"

	"github.com/microsim/go-traci-kernel/internal/traci"
)

// TrafficLightState tracks the signal state and phase index of a configured
// set of traffic lights. Unlike vehicles, the id set is fixed for the run:
// lights do not appear or disappear, so subscriptions are issued once when
// the connection is passed in.
type TrafficLightState struct {
	api traci.API
	ids []string

	states map[string]traci.TLValues
}

func NewTrafficLightState(ids []string) *TrafficLightState {
	return &TrafficLightState{
		ids:    ids,
		states: make(map[string]traci.TLValues),
	}
}

func (t *TrafficLightState) PassConnection(api traci.API) error {
	t.api = api
	for _, id := range t.ids {
		if err := api.SubscribeTrafficLight(id, traci.TLVariables); err != nil {
			return fmt.Errorf("subscribing traffic light %q: %w", id, err)
		}
	}
	return nil
}

func (t *TrafficLightState) Update(reset bool) {
	if reset {
		t.states = make(map[string]traci.TLValues)
	}
	for id, values := range t.api.Results().TrafficLights {
		t.states[id] = values
	}
}

func (t *TrafficLightState) Close() error {
	return nil
}

// IDs returns the configured traffic-light ids.
func (t *TrafficLightState) IDs() []string {
	return t.ids
}

// State returns the current red-yellow-green string for one light.
func (t *TrafficLightState) State(id string) (string, bool) {
	values, ok := t.states[id]
	return values.State, ok
}

// Phase returns the current phase index for one light.
func (t *TrafficLightState) Phase(id string) (int, bool) {
	values, ok := t.states[id]
	return values.Phase, ok
}
