package mux

import "github.com/legacylink/legacylink-bridge/internal/transport"

// fakeStream is a transport.ByteStream test double that never completes a
// Start call on its own; the test drives completions explicitly, giving
// full deterministic control over the interleaving of read and write
// completions needed to exercise TX contention and queueing without
// real-clock races.
type fakeStream struct {
	writes [][]byte // one entry per StartWrite call, in order

	writeDone transport.WriteCompleter
	readBuf   []byte
	readDone  transport.ReadCompleter
}

func (f *fakeStream) StartWrite(buf []byte, done transport.WriteCompleter) {
	f.writes = append(f.writes, append([]byte(nil), buf...))
	f.writeDone = done
}

func (f *fakeStream) CancelWrite() {
	if f.writeDone == nil {
		return
	}
	d := f.writeDone
	f.writeDone = nil
	d(transport.WriteResult{Status: transport.StatusCancelled})
}

func (f *fakeStream) StartRead(buf []byte, done transport.ReadCompleter) {
	f.readBuf = buf
	f.readDone = done
}

func (f *fakeStream) CancelRead() {
	if f.readDone == nil {
		return
	}
	d := f.readDone
	f.readDone = nil
	d(transport.ReadResult{Status: transport.StatusCancelled})
}

// completeWrite fires the pending write completion as if n bytes of the
// most recent write were accepted.
func (f *fakeStream) completeWrite(status transport.Status, n int) {
	d := f.writeDone
	f.writeDone = nil
	d(transport.WriteResult{Status: status, N: n})
}

// completeRead delivers payload as the result of the pending read.
func (f *fakeStream) completeRead(status transport.Status, payload []byte) {
	n := copy(f.readBuf, payload)
	d := f.readDone
	f.readDone = nil
	d(transport.ReadResult{Status: status, N: n})
}
