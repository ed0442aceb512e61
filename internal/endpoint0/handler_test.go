package endpoint0

import (
	"encoding/binary"
	"testing"
)

func TestVersionQueryReturnsJSONVersionID(t *testing.T) {
	h := New()
	input := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	output := make([]byte, 4)

	n, ok := h.Handle(0, input, output)
	if !ok || n != 4 {
		t.Fatalf("Handle() = (%d, %v), want (4, true)", n, ok)
	}
	got := binary.LittleEndian.Uint32(output)
	if got != JSONVersionID {
		t.Fatalf("version = %x, want %x", got, JSONVersionID)
	}
}

func TestOffsetFetchReturnsDescriptorSlice(t *testing.T) {
	h := New()
	input := []byte{0x00, 0x00, 0x00, 0x00}
	output := make([]byte, 8)

	n, ok := h.Handle(0, input, output)
	if !ok {
		t.Fatalf("Handle() ok = false")
	}
	if string(output[:n]) != string(descriptorJSON[:n]) {
		t.Fatalf("output = %q, want prefix of descriptor", output[:n])
	}
}

func TestOffsetFetchMidDescriptor(t *testing.T) {
	h := New()
	var input [4]byte
	binary.LittleEndian.PutUint32(input[:], 5)
	output := make([]byte, 6)

	n, ok := h.Handle(0, input[:], output)
	if !ok {
		t.Fatalf("Handle() ok = false")
	}
	if string(output[:n]) != string(descriptorJSON[5:5+n]) {
		t.Fatalf("output = %q, want %q", output[:n], descriptorJSON[5:5+n])
	}
}

func TestOffsetPastEndReturnsNoBytes(t *testing.T) {
	h := New()
	var input [4]byte
	binary.LittleEndian.PutUint32(input[:], uint32(len(descriptorJSON))+100)
	output := make([]byte, 4)

	n, ok := h.Handle(0, input[:], output)
	if !ok || n != 0 {
		t.Fatalf("Handle() = (%d, %v), want (0, true)", n, ok)
	}
}

func TestShortInputFails(t *testing.T) {
	h := New()
	_, ok := h.Handle(0, []byte{0x01, 0x02}, make([]byte, 4))
	if ok {
		t.Fatalf("expected short input to fail the request")
	}
}

func TestHeartbeatEchoesInput(t *testing.T) {
	h := New()
	input := []byte{0x01, 0x02, 0x03}
	output := make([]byte, 8)

	n, ok := h.Handle(HeartbeatEndpointID, input, output)
	if !ok || n != len(input) {
		t.Fatalf("Handle() = (%d, %v), want (%d, true)", n, ok, len(input))
	}
	if string(output[:n]) != string(input) {
		t.Fatalf("output = %v, want %v", output[:n], input)
	}
}

func TestHeartbeatTruncatesToOutputCapacity(t *testing.T) {
	h := New()
	input := []byte{0x01, 0x02, 0x03, 0x04}
	output := make([]byte, 2)

	n, ok := h.Handle(HeartbeatEndpointID, input, output)
	if !ok || n != 2 {
		t.Fatalf("Handle() = (%d, %v), want (2, true)", n, ok)
	}
	if string(output) != string(input[:2]) {
		t.Fatalf("output = %v, want %v", output, input[:2])
	}
}

func TestUnknownEndpointIsUnhandled(t *testing.T) {
	h := New()
	_, ok := h.Handle(99, nil, nil)
	if ok {
		t.Fatalf("expected unknown endpoint to be unhandled")
	}
}
