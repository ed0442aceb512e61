package framer

import (
	"testing"
	"time"

	"github.com/legacylink/legacylink-bridge/internal/transport"
	"github.com/legacylink/legacylink-bridge/internal/wire"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	a, b := transport.NewPipe()
	w := NewWriter(a)
	r := NewReader(b)

	payload := []byte("endpoint payload")
	writeDone := make(chan struct {
		status transport.Status
		n      int
	}, 1)
	if err := w.Write(payload, func(status transport.Status, n int) {
		writeDone <- struct {
			status transport.Status
			n      int
		}{status, n}
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	readBuf := make([]byte, len(payload))
	readDone := make(chan struct {
		status transport.Status
		n      int
	}, 1)
	if err := r.Read(readBuf, func(status transport.Status, n int) {
		readDone <- struct {
			status transport.Status
			n      int
		}{status, n}
	}); err != nil {
		t.Fatalf("Read: %v", err)
	}

	select {
	case res := <-writeDone:
		if res.status != transport.StatusOK || res.n != len(payload) {
			t.Fatalf("write completion = %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatal("write did not complete")
	}
	select {
	case res := <-readDone:
		if res.status != transport.StatusOK || res.n != len(payload) {
			t.Fatalf("read completion = %+v", res)
		}
		if string(readBuf[:res.n]) != string(payload) {
			t.Fatalf("read payload = %q, want %q", readBuf[:res.n], payload)
		}
	case <-time.After(time.Second):
		t.Fatal("read did not complete")
	}
}

func TestWriterRejectsOversizedPayload(t *testing.T) {
	a, _ := transport.NewPipe()
	w := NewWriter(a)
	if err := w.Write(make([]byte, wire.MaxPayloadLen+1), nil); err != ErrTooLarge {
		t.Fatalf("Write oversized = %v, want ErrTooLarge", err)
	}
}

func TestWriterRejectsConcurrentWrite(t *testing.T) {
	a, _ := transport.NewPipe()
	w := NewWriter(a)
	if err := w.Write([]byte("a"), func(transport.Status, int) {}); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if err := w.Write([]byte("b"), nil); err != ErrBusy {
		t.Fatalf("second Write = %v, want ErrBusy", err)
	}
}

func TestReaderRejectsConcurrentRead(t *testing.T) {
	_, b := transport.NewPipe()
	r := NewReader(b)
	if err := r.Read(make([]byte, 4), func(transport.Status, int) {}); err != nil {
		t.Fatalf("first Read: %v", err)
	}
	if err := r.Read(make([]byte, 4), nil); err != ErrBusy {
		t.Fatalf("second Read = %v, want ErrBusy", err)
	}
}

func TestReaderResyncsOnLeadingGarbage(t *testing.T) {
	a, b := transport.NewPipe()
	r := NewReader(b)

	payload := []byte{1, 2, 3, 4, 5}
	frame, err := wire.EncodeFrame(payload)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	garbage := append([]byte{0x00}, frame...)

	readBuf := make([]byte, len(payload))
	readDone := make(chan struct {
		status transport.Status
		n      int
	}, 1)
	if err := r.Read(readBuf, func(status transport.Status, n int) {
		readDone <- struct {
			status transport.Status
			n      int
		}{status, n}
	}); err != nil {
		t.Fatalf("Read: %v", err)
	}

	writeDone := make(chan transport.WriteResult, 1)
	a.StartWrite(garbage, func(r transport.WriteResult) { writeDone <- r })
	select {
	case <-writeDone:
	case <-time.After(time.Second):
		t.Fatal("garbage write did not complete")
	}

	select {
	case res := <-readDone:
		if res.status != transport.StatusOK || res.n != len(payload) {
			t.Fatalf("read completion = %+v", res)
		}
		if string(readBuf[:res.n]) != string(payload) {
			t.Fatalf("resynced payload = %q, want %q", readBuf[:res.n], payload)
		}
	case <-time.After(time.Second):
		t.Fatal("read did not resync and complete")
	}
}

func TestReaderTruncatesWhenDestinationSmallerThanPayload(t *testing.T) {
	a, b := transport.NewPipe()
	r := NewReader(b)

	payload := []byte{10, 20, 30, 40, 50}
	frame, err := wire.EncodeFrame(payload)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	// Destination smaller than LEN; per the mandated reference behavior the
	// reader copies only the first len(dst) bytes and reads the next two
	// wire bytes as if they were the trailer, which will not validate
	// against the true payload and so triggers a resync rather than a
	// reported completion for this frame.
	readBuf := make([]byte, 2)
	readDone := make(chan struct {
		status transport.Status
		n      int
	}, 1)
	if err := r.Read(readBuf, func(status transport.Status, n int) {
		readDone <- struct {
			status transport.Status
			n      int
		}{status, n}
	}); err != nil {
		t.Fatalf("Read: %v", err)
	}

	a.StartWrite(frame, func(transport.WriteResult) {})

	select {
	case res := <-readDone:
		t.Fatalf("unexpected completion on truncated frame: %+v (mismatched trailer should resync, not complete)", res)
	case <-time.After(100 * time.Millisecond):
		// Expected: no completion yet, the reader looped back into header
		// scanning. Confirm forward progress isn't stuck by feeding a clean
		// frame next and checking it is recovered.
	}

	clean, err := wire.EncodeFrame([]byte{9, 9})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	a.StartWrite(clean, func(transport.WriteResult) {})

	select {
	case res := <-readDone:
		if res.status != transport.StatusOK {
			t.Fatalf("completion status = %v, want OK", res.status)
		}
	case <-time.After(time.Second):
		t.Fatal("reader never recovered after truncated-frame resync")
	}
}
