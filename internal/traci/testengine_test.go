package traci

import (
	"io"
	"net"
	"sync"
	"testing"
)

// fakeEngine is an in-process stand-in for the engine's protocol server.
// It accepts a single session and answers the command subset the client
// speaks, serving scripted subscription payloads on each step.
type fakeEngine struct {
	t  *testing.T
	ln net.Listener

	mu         sync.Mutex
	simVars    []byte
	vehicleIDs []string
	tlIDs      []string
	orders     []int
	steps      int
	closed     bool

	// Per-step scripted values; the last entry repeats once exhausted.
	script []fakeStep

	rejectSubscribe bool
}

type fakeStep struct {
	time      float64
	deltaT    float64
	departed  []string
	arrived   []string
	teleports []string
	vehicles  map[string]VehicleValues
	tls       map[string]TLValues
}

func newFakeEngine(t *testing.T, script ...fakeStep) *fakeEngine {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("fake engine listen: %v", err)
	}
	f := &fakeEngine{t: t, ln: ln, script: script}
	go f.serve()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeEngine) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeEngine) serve() {
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		body, err := readMessage(conn)
		if err != nil {
			return
		}
		r := newReader(body)
		for r.remaining() > 0 {
			id, payload, err := r.commandHeader()
			if err != nil {
				return
			}
			if done := f.handle(conn, id, payload); done {
				return
			}
		}
	}
}

// handle answers one command; returns true when the session should end.
func (f *fakeEngine) handle(conn net.Conn, id byte, payload *reader) bool {
	switch id {
	case CmdGetVersion:
		resp := &writer{}
		resp.writeInt(21)
		resp.writeString("fake-engine 1.0")
		f.reply(conn, statusOK(id), packCommand(CmdGetVersion, resp.buf))

	case CmdSetOrder:
		order, _ := payload.readInt()
		f.mu.Lock()
		f.orders = append(f.orders, int(order))
		f.mu.Unlock()
		f.reply(conn, statusOK(id))

	case CmdSubscribeSimVariable, CmdSubscribeVehicleVariable, CmdSubscribeTLVariable:
		if f.rejectSubscribe {
			f.reply(conn, statusErr(id, "subscription refused"))
			return false
		}
		payload.readDouble() // begin
		payload.readDouble() // end
		objID, _ := payload.readString()
		count, _ := payload.readByte()
		vars := make([]byte, 0, count)
		for i := 0; i < int(count); i++ {
			v, _ := payload.readByte()
			vars = append(vars, v)
		}
		f.mu.Lock()
		switch id {
		case CmdSubscribeSimVariable:
			f.simVars = vars
		case CmdSubscribeVehicleVariable:
			f.vehicleIDs = append(f.vehicleIDs, objID)
		case CmdSubscribeTLVariable:
			f.tlIDs = append(f.tlIDs, objID)
		}
		f.mu.Unlock()
		f.reply(conn, statusOK(id))

	case CmdSimStep:
		payload.readDouble() // target time
		f.replyStep(conn)

	case CmdClose:
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		f.reply(conn, statusOK(id))
		return true

	default:
		f.reply(conn, statusErr(id, "not implemented"))
	}
	return false
}

func (f *fakeEngine) replyStep(conn net.Conn) {
	f.mu.Lock()
	step := fakeStep{}
	if len(f.script) > 0 {
		i := f.steps
		if i >= len(f.script) {
			i = len(f.script) - 1
		}
		step = f.script[i]
	}
	f.steps++
	simVars := f.simVars
	vehicleIDs := append([]string(nil), f.vehicleIDs...)
	tlIDs := append([]string(nil), f.tlIDs...)
	f.mu.Unlock()

	var subs [][]byte
	if len(simVars) > 0 {
		subs = append(subs, f.simResponse(simVars, step))
	}
	for _, id := range vehicleIDs {
		if veh, ok := step.vehicles[id]; ok {
			subs = append(subs, vehicleResponse(id, veh))
		}
	}
	for _, id := range tlIDs {
		if tl, ok := step.tls[id]; ok {
			subs = append(subs, tlResponse(id, tl))
		}
	}

	countBuf := &writer{}
	countBuf.writeInt(int32(len(subs)))

	parts := [][]byte{statusOK(CmdSimStep), countBuf.buf}
	parts = append(parts, subs...)
	f.reply(conn, parts...)
}

func (f *fakeEngine) simResponse(vars []byte, step fakeStep) []byte {
	w := &writer{}
	w.writeString("") // sim object id
	w.writeByte(byte(len(vars)))
	for _, v := range vars {
		w.writeByte(v)
		w.writeByte(StatusOK)
		switch v {
		case VarTimeStep:
			appendTypedValue(w, typedValue{kind: TypeDouble, d: step.time})
		case VarDeltaT:
			appendTypedValue(w, typedValue{kind: TypeDouble, d: step.deltaT})
		case VarDepartedVehicleIDs:
			appendTypedValue(w, typedValue{kind: TypeStringList, list: step.departed})
		case VarArrivedVehicleIDs:
			appendTypedValue(w, typedValue{kind: TypeStringList, list: step.arrived})
		case VarTeleportStartingVehIDs:
			appendTypedValue(w, typedValue{kind: TypeStringList, list: step.teleports})
		default:
			appendTypedValue(w, typedValue{kind: TypeInteger})
		}
	}
	return packCommand(ResponseSubscribeSimVariable, w.buf)
}

func vehicleResponse(id string, veh VehicleValues) []byte {
	w := &writer{}
	w.writeString(id)
	w.writeByte(3)
	w.writeByte(VarSpeed)
	w.writeByte(StatusOK)
	appendTypedValue(w, typedValue{kind: TypeDouble, d: veh.Speed})
	w.writeByte(VarPosition)
	w.writeByte(StatusOK)
	appendTypedValue(w, typedValue{kind: TypePosition2D, d2: veh.Position})
	w.writeByte(VarAngle)
	w.writeByte(StatusOK)
	appendTypedValue(w, typedValue{kind: TypeDouble, d: veh.Angle})
	return packCommand(ResponseSubscribeVehicleVariable, w.buf)
}

func tlResponse(id string, tl TLValues) []byte {
	w := &writer{}
	w.writeString(id)
	w.writeByte(2)
	w.writeByte(VarTLState)
	w.writeByte(StatusOK)
	appendTypedValue(w, typedValue{kind: TypeString, s: tl.State})
	w.writeByte(VarTLPhase)
	w.writeByte(StatusOK)
	appendTypedValue(w, typedValue{kind: TypeInteger, i: int32(tl.Phase)})
	return packCommand(ResponseSubscribeTLVariable, w.buf)
}

func statusOK(id byte) []byte {
	w := &writer{}
	w.writeByte(StatusOK)
	w.writeString("")
	return packCommand(id, w.buf)
}

func statusErr(id byte, desc string) []byte {
	w := &writer{}
	w.writeByte(StatusErr)
	w.writeString(desc)
	return packCommand(id, w.buf)
}

func (f *fakeEngine) reply(conn net.Conn, parts ...[]byte) {
	if _, err := conn.Write(packMessage(parts...)); err != nil && err != io.EOF {
		f.t.Logf("fake engine write: %v", err)
	}
}
