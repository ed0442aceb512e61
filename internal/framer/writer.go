// Package framer implements the write-side (Writer) and read-side (Reader)
// packet framing state machines: wrapping a payload in a header+CRC8+
// trailer on the way out, and scanning an incoming byte stream for valid
// frames (resynchronising on garbage) on the way in.
//
// Neither type is safe for concurrent use; both are designed to be driven
// exclusively from closures posted to a single internal/transport.Worker,
// matching the "all state mutation happens on one designated worker
// context" rule.
package framer

import (
	"github.com/legacylink/legacylink-bridge/internal/metrics"
	"github.com/legacylink/legacylink-bridge/internal/transport"
	"github.com/legacylink/legacylink-bridge/internal/wire"
)

type writerState int

const (
	writerIdle writerState = iota
	writerSendingHeader
	writerSendingPayload
	writerSendingTrailer
	writerCancelling
)

// WriteCompleter receives the outcome of a Writer.Write call: the final
// status and, on success, the end-of-payload offset (never the trailer).
type WriteCompleter func(status transport.Status, writtenUpTo int)

// Writer drives a transport.ByteStream through the three-phase write
// sequence: header, payload, trailer.
type Writer struct {
	stream transport.ByteStream
	state  writerState

	header  [wire.HeaderLen]byte
	trailer [wire.TrailerLen]byte
	payload []byte
	sent    int

	completer WriteCompleter
}

// NewWriter returns a Writer that drives stream.
func NewWriter(stream transport.ByteStream) *Writer {
	return &Writer{stream: stream, state: writerIdle}
}

// Write submits payload for framing and transmission. It fails synchronously
// with ErrBusy if a write is already in progress, or ErrTooLarge if payload
// exceeds wire.MaxPayloadLen; in both cases no state changes and done is
// never called. Otherwise done is invoked exactly once when the frame has
// been fully transmitted or the attempt has failed.
func (w *Writer) Write(payload []byte, done WriteCompleter) error {
	if w.state != writerIdle {
		return ErrBusy
	}
	if len(payload) > wire.MaxPayloadLen {
		return ErrTooLarge
	}
	w.payload = payload
	w.completer = done
	wire.EncodeHeader(w.header[:], uint8(len(payload)))
	w.state = writerSendingHeader
	w.sent = 0
	w.stream.StartWrite(w.header[:], w.onHeaderDone)
	return nil
}

// Cancel requests cancellation of the in-flight write. It is a no-op if no
// write is in progress or a cancellation is already pending; otherwise the
// next completion from the stream reports StatusCancelled.
func (w *Writer) Cancel() {
	if w.state == writerIdle || w.state == writerCancelling {
		return
	}
	w.state = writerCancelling
	w.stream.CancelWrite()
}

func (w *Writer) onHeaderDone(r transport.WriteResult) {
	if w.state == writerCancelling {
		w.finish(transport.StatusCancelled, 0)
		return
	}
	if r.Status != transport.StatusOK {
		w.finish(r.Status, 0)
		return
	}
	w.sent += r.N
	if w.sent < len(w.header) {
		w.stream.StartWrite(w.header[w.sent:], w.onHeaderDone)
		return
	}
	w.sent = 0
	w.state = writerSendingPayload
	if len(w.payload) == 0 {
		w.startTrailer()
		return
	}
	w.stream.StartWrite(w.payload, w.onPayloadDone)
}

func (w *Writer) onPayloadDone(r transport.WriteResult) {
	if w.state == writerCancelling {
		w.finish(transport.StatusCancelled, 0)
		return
	}
	if r.Status != transport.StatusOK {
		w.finish(r.Status, 0)
		return
	}
	w.sent += r.N
	if w.sent < len(w.payload) {
		w.stream.StartWrite(w.payload[w.sent:], w.onPayloadDone)
		return
	}
	w.startTrailer()
}

func (w *Writer) startTrailer() {
	wire.EncodeTrailer(w.trailer[:], w.payload)
	w.sent = 0
	w.state = writerSendingTrailer
	w.stream.StartWrite(w.trailer[:], w.onTrailerDone)
}

func (w *Writer) onTrailerDone(r transport.WriteResult) {
	if w.state == writerCancelling {
		w.finish(transport.StatusCancelled, 0)
		return
	}
	if r.Status != transport.StatusOK {
		w.finish(r.Status, 0)
		return
	}
	w.sent += r.N
	if w.sent < len(w.trailer) {
		w.stream.StartWrite(w.trailer[w.sent:], w.onTrailerDone)
		return
	}
	metrics.IncFramesTx()
	w.finish(transport.StatusOK, len(w.payload))
}

func (w *Writer) finish(status transport.Status, writtenUpTo int) {
	w.state = writerIdle
	c := w.completer
	w.completer = nil
	w.payload = nil
	if c != nil {
		c(status, writtenUpTo)
	}
}
