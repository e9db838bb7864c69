package traci

import (
	"bytes"
	"testing"
)

func TestPackCommandShort(t *testing.T) {
	cmd := packCommand(CmdSimStep, []byte{1, 2, 3})
	// length 5 (len byte + id + 3 payload), id, payload
	want := []byte{5, CmdSimStep, 1, 2, 3}
	if !bytes.Equal(cmd, want) {
		t.Errorf("packCommand = %v, want %v", cmd, want)
	}
}

func TestPackCommandExtended(t *testing.T) {
	payload := make([]byte, 300)
	cmd := packCommand(CmdSimStep, payload)

	if cmd[0] != 0 {
		t.Errorf("extended command must start with zero marker, got %d", cmd[0])
	}
	if len(cmd) != 306 {
		t.Errorf("len = %d, want 306 (marker + 4-byte len + id + 300)", len(cmd))
	}

	r := newReader(cmd)
	id, body, err := r.commandHeader()
	if err != nil {
		t.Fatalf("commandHeader: %v", err)
	}
	if id != CmdSimStep {
		t.Errorf("id = 0x%02x, want 0x%02x", id, CmdSimStep)
	}
	if body.remaining() != 300 {
		t.Errorf("payload = %d bytes, want 300", body.remaining())
	}
}

func TestMessageRoundTrip(t *testing.T) {
	msg := packMessage(packCommand(CmdGetVersion, nil), packCommand(CmdSetOrder, []byte{0, 0, 0, 1}))

	body, err := readMessage(bytes.NewReader(msg))
	if err != nil {
		t.Fatalf("readMessage: %v", err)
	}

	r := newReader(body)
	id, _, err := r.commandHeader()
	if err != nil || id != CmdGetVersion {
		t.Fatalf("first command id = 0x%02x, err = %v", id, err)
	}
	id, payload, err := r.commandHeader()
	if err != nil || id != CmdSetOrder {
		t.Fatalf("second command id = 0x%02x, err = %v", id, err)
	}
	order, err := payload.readInt()
	if err != nil || order != 1 {
		t.Errorf("order = %d, err = %v, want 1", order, err)
	}
	if r.remaining() != 0 {
		t.Errorf("remaining = %d, want 0", r.remaining())
	}
}

func TestScalarRoundTrip(t *testing.T) {
	w := &writer{}
	w.writeByte(0x42)
	w.writeInt(-7)
	w.writeDouble(0.1)
	w.writeString("veh3")
	w.writeStringList([]string{"a", "b"})

	r := newReader(w.buf)
	if b, _ := r.readByte(); b != 0x42 {
		t.Errorf("byte = 0x%02x, want 0x42", b)
	}
	if i, _ := r.readInt(); i != -7 {
		t.Errorf("int = %d, want -7", i)
	}
	if d, _ := r.readDouble(); d != 0.1 {
		t.Errorf("double = %v, want 0.1", d)
	}
	if s, _ := r.readString(); s != "veh3" {
		t.Errorf("string = %q, want veh3", s)
	}
	list, err := r.readStringList()
	if err != nil || len(list) != 2 || list[0] != "a" || list[1] != "b" {
		t.Errorf("string list = %v, err = %v, want [a b]", list, err)
	}
	if r.remaining() != 0 {
		t.Errorf("remaining = %d, want 0", r.remaining())
	}
}

func TestTypedValueRoundTrip(t *testing.T) {
	values := []typedValue{
		{kind: TypeUByte, i: 7},
		{kind: TypeInteger, i: 1234},
		{kind: TypeDouble, d: 13.89},
		{kind: TypePosition2D, d2: [2]float64{10.5, -3.25}},
		{kind: TypeString, s: "GrGr"},
		{kind: TypeStringList, list: []string{"veh0", "veh1"}},
	}

	w := &writer{}
	for _, v := range values {
		appendTypedValue(w, v)
	}

	r := newReader(w.buf)
	for i, want := range values {
		got, err := r.readTypedValue()
		if err != nil {
			t.Fatalf("value %d: %v", i, err)
		}
		if got.kind != want.kind {
			t.Errorf("value %d kind = 0x%02x, want 0x%02x", i, got.kind, want.kind)
		}
		switch want.kind {
		case TypeUByte, TypeInteger:
			if got.i != want.i {
				t.Errorf("value %d = %d, want %d", i, got.i, want.i)
			}
		case TypeDouble:
			if got.d != want.d {
				t.Errorf("value %d = %v, want %v", i, got.d, want.d)
			}
		case TypePosition2D:
			if got.d2 != want.d2 {
				t.Errorf("value %d = %v, want %v", i, got.d2, want.d2)
			}
		case TypeString:
			if got.s != want.s {
				t.Errorf("value %d = %q, want %q", i, got.s, want.s)
			}
		case TypeStringList:
			if len(got.list) != len(want.list) {
				t.Errorf("value %d = %v, want %v", i, got.list, want.list)
			}
		}
	}
}

func TestReadTypedValueUnknownType(t *testing.T) {
	r := newReader([]byte{0x99, 0x00})
	if _, err := r.readTypedValue(); err == nil {
		t.Error("expected error for unknown value type")
	}
}

func TestReadMessageTruncated(t *testing.T) {
	msg := packMessage(packCommand(CmdGetVersion, nil))
	if _, err := readMessage(bytes.NewReader(msg[:len(msg)-1])); err == nil {
		t.Error("expected error for truncated message")
	}
}
