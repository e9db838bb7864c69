package traci

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/microsim/go-traci-kernel/internal/logging"
)

func connectTo(t *testing.T, f *fakeEngine) *Client {
	t.Helper()
	c, err := Connect(f.port(), 3, 10*time.Millisecond,
		logging.NewLoggerWithWriter(&bytes.Buffer{}, "json", "error"))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestConnectHandshake(t *testing.T) {
	f := newFakeEngine(t)
	c := connectTo(t, f)

	api, version := c.Version()
	if api != 21 {
		t.Errorf("api version = %d, want 21", api)
	}
	if version != "fake-engine 1.0" {
		t.Errorf("engine version = %q", version)
	}
}

func TestConnectExhaustsAttempts(t *testing.T) {
	// Reserve a port, then close it so dials are refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	start := time.Now()
	_, err = Connect(port, 3, 10*time.Millisecond,
		logging.NewLoggerWithWriter(&bytes.Buffer{}, "json", "error"))
	if err == nil {
		t.Fatal("expected ConnectError")
	}

	var cerr *ConnectError
	if !errors.As(err, &cerr) {
		t.Fatalf("error should be *ConnectError, got %T", err)
	}
	if cerr.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", cerr.Attempts)
	}
	if cerr.Port != port {
		t.Errorf("port = %d, want %d", cerr.Port, port)
	}
	// Two inter-attempt delays of 10ms.
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("elapsed = %v, want at least 20ms of inter-attempt delay", elapsed)
	}
}

func TestSetOrderReachesEngine(t *testing.T) {
	f := newFakeEngine(t)
	c := connectTo(t, f)

	if err := c.SetOrder(0); err != nil {
		t.Fatalf("SetOrder: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.orders) != 1 || f.orders[0] != 0 {
		t.Errorf("engine recorded orders %v, want [0]", f.orders)
	}
}

func TestStepDeliversSimSubscription(t *testing.T) {
	f := newFakeEngine(t,
		fakeStep{time: 0.1, deltaT: 0.1, departed: []string{"veh0"}},
		fakeStep{time: 0.2, deltaT: 0.1, teleports: []string{"veh3"}, arrived: []string{"veh0"}},
	)
	c := connectTo(t, f)

	if err := c.SubscribeSim(SimVariables); err != nil {
		t.Fatalf("SubscribeSim: %v", err)
	}

	res, err := c.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Sim.Time != 0.1 {
		t.Errorf("time = %v, want 0.1", res.Sim.Time)
	}
	if len(res.Sim.DepartedIDs) != 1 || res.Sim.DepartedIDs[0] != "veh0" {
		t.Errorf("departed = %v, want [veh0]", res.Sim.DepartedIDs)
	}
	if len(res.Sim.TeleportStartIDs) != 0 {
		t.Errorf("teleports = %v, want empty", res.Sim.TeleportStartIDs)
	}

	res, err = c.Step()
	if err != nil {
		t.Fatalf("Step 2: %v", err)
	}
	if len(res.Sim.TeleportStartIDs) != 1 || res.Sim.TeleportStartIDs[0] != "veh3" {
		t.Errorf("teleports = %v, want [veh3]", res.Sim.TeleportStartIDs)
	}
	if len(res.Sim.ArrivedIDs) != 1 || res.Sim.ArrivedIDs[0] != "veh0" {
		t.Errorf("arrived = %v, want [veh0]", res.Sim.ArrivedIDs)
	}

	// Results() returns the latest step.
	if got := c.Results(); got != res {
		t.Error("Results() should return the latest step results")
	}
}

func TestStepDeliversVehicleAndTLSubscriptions(t *testing.T) {
	f := newFakeEngine(t, fakeStep{
		time:     0.1,
		vehicles: map[string]VehicleValues{"veh0": {Speed: 13.9, Position: [2]float64{10, 20}, Angle: 90}},
		tls:      map[string]TLValues{"tl0": {State: "GrGr", Phase: 2}},
	})
	c := connectTo(t, f)

	if err := c.SubscribeVehicle("veh0", VehicleVariables); err != nil {
		t.Fatalf("SubscribeVehicle: %v", err)
	}
	if err := c.SubscribeTrafficLight("tl0", TLVariables); err != nil {
		t.Fatalf("SubscribeTrafficLight: %v", err)
	}

	res, err := c.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}

	veh, ok := res.Vehicles["veh0"]
	if !ok {
		t.Fatal("veh0 missing from results")
	}
	if veh.Speed != 13.9 || veh.Position != [2]float64{10, 20} || veh.Angle != 90 {
		t.Errorf("vehicle values = %+v", veh)
	}

	tl, ok := res.TrafficLights["tl0"]
	if !ok {
		t.Fatal("tl0 missing from results")
	}
	if tl.State != "GrGr" || tl.Phase != 2 {
		t.Errorf("tl values = %+v", tl)
	}
}

func TestSubscribeRejectedSurfacesDescription(t *testing.T) {
	f := newFakeEngine(t)
	f.rejectSubscribe = true
	c := connectTo(t, f)

	err := c.SubscribeSim(SimVariables)
	if err == nil {
		t.Fatal("expected subscription rejection")
	}
	if !strings.Contains(err.Error(), "subscription refused") {
		t.Errorf("error should carry the engine description, got: %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newFakeEngine(t)
	c := connectTo(t, f)

	if err := c.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		t.Error("engine should have received the close command")
	}
}
