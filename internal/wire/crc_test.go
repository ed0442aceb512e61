package wire

import "testing"

func TestCRC16Residue(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	crc := CRC16(payload)
	if !CRC16Residue(payload, crc) {
		t.Fatalf("residue check failed for matching trailer")
	}
	if CRC16Residue(payload, crc^0x0001) {
		t.Fatalf("residue check passed for corrupted trailer")
	}
}

func TestCRC8Deterministic(t *testing.T) {
	a := CRC8([]byte{FramePrefix, 5})
	b := CRC8([]byte{FramePrefix, 5})
	if a != b {
		t.Fatalf("CRC8 not deterministic: %x vs %x", a, b)
	}
	if CRC8([]byte{FramePrefix, 6}) == a {
		t.Fatalf("CRC8 collided on different inputs (possible but suspicious for this test vector)")
	}
}

func TestEncodeFrameRejectsOversizedPayload(t *testing.T) {
	payload := make([]byte, MaxPayloadLen+1)
	if _, err := EncodeFrame(payload); err != ErrPayloadTooLarge {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	hdr := make([]byte, HeaderLen)
	EncodeHeader(hdr, 42)
	length, ok := DecodeHeader(hdr)
	if !ok || length != 42 {
		t.Fatalf("DecodeHeader = (%d, %v), want (42, true)", length, ok)
	}
	hdr[2] ^= 0xFF
	if _, ok := DecodeHeader(hdr); ok {
		t.Fatalf("DecodeHeader accepted a corrupted CRC8")
	}
}

func TestEncodeFrameLayout(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	frame, err := EncodeFrame(payload)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if frame[0] != FramePrefix {
		t.Fatalf("frame[0] = %x, want prefix", frame[0])
	}
	if frame[1] != uint8(len(payload)) {
		t.Fatalf("frame[1] = %d, want %d", frame[1], len(payload))
	}
	length, ok := DecodeHeader(frame[:HeaderLen])
	if !ok || int(length) != len(payload) {
		t.Fatalf("DecodeHeader(frame) = (%d, %v)", length, ok)
	}
	trailer := DecodeTrailer(frame[HeaderLen+len(payload):])
	if !CRC16Residue(frame[HeaderLen:HeaderLen+len(payload)], trailer) {
		t.Fatalf("trailer does not validate against payload")
	}
}
