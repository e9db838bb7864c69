package traci

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// The wire format is big-endian. A message is a 4-byte total length
// (including the prefix itself) followed by one or more commands. Each
// command starts with a 1-byte length; a zero first byte escapes to a 4-byte
// extended length for commands longer than 255 bytes. The command id byte
// follows the length.

// writer accumulates a command payload.
type writer struct {
	buf []byte
}

func (w *writer) writeByte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *writer) writeInt(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

func (w *writer) writeDouble(v float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

func (w *writer) writeString(s string) {
	w.writeInt(int32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) writeStringList(ss []string) {
	w.writeInt(int32(len(ss)))
	for _, s := range ss {
		w.writeString(s)
	}
}

// packCommand frames a single command (length header + id + payload).
func packCommand(id byte, payload []byte) []byte {
	total := len(payload) + 2 // len byte + id byte
	if total <= 0xff {
		out := make([]byte, 0, total)
		out = append(out, byte(total), id)
		return append(out, payload...)
	}
	// Extended length: zero marker, 4-byte length including the 6 header bytes.
	total = len(payload) + 6
	out := make([]byte, 0, total)
	out = append(out, 0)
	out = binary.BigEndian.AppendUint32(out, uint32(total))
	out = append(out, id)
	return append(out, payload...)
}

// packMessage frames one or more commands into a wire message.
func packMessage(commands ...[]byte) []byte {
	total := 4
	for _, c := range commands {
		total += len(c)
	}
	out := make([]byte, 0, total)
	out = binary.BigEndian.AppendUint32(out, uint32(total))
	for _, c := range commands {
		out = append(out, c...)
	}
	return out
}

// readMessage reads a full wire message body (without the length prefix).
func readMessage(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	total := binary.BigEndian.Uint32(lenBuf[:])
	if total < 4 {
		return nil, fmt.Errorf("invalid message length %d", total)
	}
	body := make([]byte, total-4)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// reader consumes a message body command by command.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) readByte() (byte, error) {
	if r.remaining() < 1 {
		return 0, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readInt() (int32, error) {
	if r.remaining() < 4 {
		return 0, io.ErrUnexpectedEOF
	}
	v := int32(binary.BigEndian.Uint32(r.buf[r.pos:]))
	r.pos += 4
	return v, nil
}

func (r *reader) readDouble() (float64, error) {
	if r.remaining() < 8 {
		return 0, io.ErrUnexpectedEOF
	}
	v := math.Float64frombits(binary.BigEndian.Uint64(r.buf[r.pos:]))
	r.pos += 8
	return v, nil
}

func (r *reader) readString() (string, error) {
	n, err := r.readInt()
	if err != nil {
		return "", err
	}
	if n < 0 || r.remaining() < int(n) {
		return "", io.ErrUnexpectedEOF
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *reader) readStringList() ([]string, error) {
	n, err := r.readInt()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("negative string list length %d", n)
	}
	out := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		s, err := r.readString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// commandHeader reads the next command's header, returning its id and a
// reader scoped to its payload.
func (r *reader) commandHeader() (byte, *reader, error) {
	start := r.pos
	short, err := r.readByte()
	if err != nil {
		return 0, nil, err
	}
	var total int
	if short == 0 {
		ext, err := r.readInt()
		if err != nil {
			return 0, nil, err
		}
		total = int(ext)
	} else {
		total = int(short)
	}
	id, err := r.readByte()
	if err != nil {
		return 0, nil, err
	}
	end := start + total
	if total < 2 || end > len(r.buf) {
		return 0, nil, fmt.Errorf("command 0x%02x: invalid length %d", id, total)
	}
	payload := newReader(r.buf[r.pos:end])
	r.pos = end
	return id, payload, nil
}

// typedValue is one decoded subscription value.
type typedValue struct {
	kind byte
	i    int32
	d    float64
	d2   [2]float64
	s    string
	list []string
}

// readTypedValue decodes a type byte followed by its value.
func (r *reader) readTypedValue() (typedValue, error) {
	kind, err := r.readByte()
	if err != nil {
		return typedValue{}, err
	}
	v := typedValue{kind: kind}
	switch kind {
	case TypeUByte, TypeByte:
		b, err := r.readByte()
		if err != nil {
			return v, err
		}
		v.i = int32(b)
	case TypeInteger:
		v.i, err = r.readInt()
	case TypeDouble:
		v.d, err = r.readDouble()
	case TypePosition2D:
		if v.d2[0], err = r.readDouble(); err != nil {
			return v, err
		}
		v.d2[1], err = r.readDouble()
	case TypeString:
		v.s, err = r.readString()
	case TypeStringList:
		v.list, err = r.readStringList()
	default:
		return v, fmt.Errorf("unsupported value type 0x%02x", kind)
	}
	return v, err
}

// appendTypedValue encodes a type byte and value; used by the test engine
// and kept next to the decoder so the two stay in sync.
func appendTypedValue(w *writer, v typedValue) {
	w.writeByte(v.kind)
	switch v.kind {
	case TypeUByte, TypeByte:
		w.writeByte(byte(v.i))
	case TypeInteger:
		w.writeInt(v.i)
	case TypeDouble:
		w.writeDouble(v.d)
	case TypePosition2D:
		w.writeDouble(v.d2[0])
		w.writeDouble(v.d2[1])
	case TypeString:
		w.writeString(v.s)
	case TypeStringList:
		w.writeStringList(v.list)
	}
}
