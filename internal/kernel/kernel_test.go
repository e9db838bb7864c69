package kernel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/microsim/go-traci-kernel/internal/config"
	"github.com/microsim/go-traci-kernel/internal/process"
	"github.com/microsim/go-traci-kernel/internal/simctl"
	"github.com/microsim/go-traci-kernel/internal/traci"
)

type spySupervisor struct {
	spawns int
	order  *[]string
}

func (s *spySupervisor) Spawn(_ context.Context, _ process.CommandBuilder) (*process.Handle, error) {
	s.spawns++
	return &process.Handle{}, nil
}

func (s *spySupervisor) Kill(_ *process.Handle) {
	if s.order != nil {
		*s.order = append(*s.order, "kill")
	}
}

// stubConn is a full simctl.Connection with canned step results.
type stubConn struct {
	fakeAPI
	orders []int
	steps  int
	closed int
}

func (c *stubConn) SetOrder(order int) error {
	c.orders = append(c.orders, order)
	return nil
}

func (c *stubConn) Step() (*traci.StepResults, error) {
	c.steps++
	return c.results, nil
}

func (c *stubConn) Close() error {
	c.closed++
	return nil
}

func stubConnector(conn *stubConn) simctl.Connector {
	return func(port, maxAttempts int, delay time.Duration) (simctl.Connection, error) {
		return conn, nil
	}
}

func kernelConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Binary = "fake-engine"
	cfg.ConfigFile = "net.sumocfg"
	cfg.SettleDelay = time.Millisecond
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func newStubConn() *stubConn {
	return &stubConn{fakeAPI: *newFakeAPI()}
}

func TestUnknownBackendFailsBeforeSpawn(t *testing.T) {
	cfg := kernelConfig()
	cfg.Backend = "nonexistent"
	sup := &spySupervisor{}

	_, err := NewWith(cfg, sup, stubConnector(newStubConn()), quietLogger())
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
	if cerr.Backend != "nonexistent" {
		t.Errorf("Backend = %q, want %q", cerr.Backend, "nonexistent")
	}
	if sup.spawns != 0 {
		t.Errorf("spawns = %d, want 0", sup.spawns)
	}
}

func TestStartDistributesConnection(t *testing.T) {
	cfg := kernelConfig()
	cfg.TrafficLightIDs = []string{"tl0"}
	conn := newStubConn()
	conn.results.Sim.DepartedIDs = []string{"veh0"}

	k, err := NewWith(cfg, &spySupervisor{}, stubConnector(conn), quietLogger())
	if err != nil {
		t.Fatalf("NewWith: %v", err)
	}
	if k.State() != Uninitialized {
		t.Fatalf("state = %s, want %s", k.State(), Uninitialized)
	}

	if err := k.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if k.State() != Connected {
		t.Errorf("state = %s, want %s", k.State(), Connected)
	}
	if len(conn.tlSubs) != 1 || conn.tlSubs[0] != "tl0" {
		t.Errorf("traffic-light subscriptions = %v, want [tl0]", conn.tlSubs)
	}
	// The priming step's departed list is folded in before the first Step.
	if k.Vehicle.Count() != 1 {
		t.Errorf("vehicle count = %d, want 1", k.Vehicle.Count())
	}
}

func TestStepAdvancesAndRefreshes(t *testing.T) {
	cfg := kernelConfig()
	conn := newStubConn()

	k, err := NewWith(cfg, &spySupervisor{}, stubConnector(conn), quietLogger())
	if err != nil {
		t.Fatalf("NewWith: %v", err)
	}
	if err := k.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	primeSteps := conn.steps

	conn.results.Sim = traci.SimValues{Time: 0.2, TeleportStartIDs: []string{"veh7"}}
	if err := k.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if conn.steps != primeSteps+1 {
		t.Errorf("engine steps = %d, want %d", conn.steps, primeSteps+1)
	}
	if k.Simulation.Time() != 0.2 {
		t.Errorf("Simulation.Time() = %v, want 0.2", k.Simulation.Time())
	}

	collided, err := k.CheckCollision()
	if err != nil {
		t.Fatalf("CheckCollision: %v", err)
	}
	if !collided {
		t.Error("no collision reported with non-empty teleport list")
	}
}

// recordingSubsystem appends its name to a shared trace on every call.
type recordingSubsystem struct {
	name  string
	trace *[]string
}

func (r *recordingSubsystem) PassConnection(traci.API) error {
	*r.trace = append(*r.trace, "pass:"+r.name)
	return nil
}

func (r *recordingSubsystem) Update(bool) {
	*r.trace = append(*r.trace, "update:"+r.name)
}

func (r *recordingSubsystem) Close() error {
	*r.trace = append(*r.trace, "close:"+r.name)
	return nil
}

func recordingKernel(t *testing.T, trace *[]string, sup *spySupervisor) *Kernel {
	t.Helper()
	k, err := NewWith(kernelConfig(), sup, stubConnector(newStubConn()), quietLogger())
	if err != nil {
		t.Fatalf("NewWith: %v", err)
	}
	k.subsystems = []Subsystem{
		&recordingSubsystem{name: "vehicle", trace: trace},
		&recordingSubsystem{name: "trafficlight", trace: trace},
		&recordingSubsystem{name: "simulation", trace: trace},
	}
	return k
}

func TestUpdateOrderIsFixed(t *testing.T) {
	for _, reset := range []bool{false, true} {
		var trace []string
		k := recordingKernel(t, &trace, &spySupervisor{})

		k.Update(reset)

		want := []string{"update:vehicle", "update:trafficlight", "update:simulation"}
		if len(trace) != len(want) {
			t.Fatalf("reset=%v: trace = %v, want %v", reset, trace, want)
		}
		for i := range want {
			if trace[i] != want[i] {
				t.Errorf("reset=%v: trace[%d] = %q, want %q", reset, i, trace[i], want[i])
			}
		}
	}
}

func TestCloseOrderAndIdempotence(t *testing.T) {
	var trace []string
	sup := &spySupervisor{order: &trace}
	k := recordingKernel(t, &trace, sup)

	if err := k.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	trace = trace[:0]

	k.Close()
	want := []string{"close:vehicle", "close:trafficlight", "close:simulation", "kill"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Errorf("trace[%d] = %q, want %q", i, trace[i], want[i])
		}
	}
	if k.State() != Closed {
		t.Errorf("state = %s, want %s", k.State(), Closed)
	}

	k.Close()
	if len(trace) != len(want) {
		t.Errorf("second Close repeated teardown: trace = %v", trace)
	}
}
