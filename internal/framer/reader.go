package framer

import (
	"github.com/legacylink/legacylink-bridge/internal/metrics"
	"github.com/legacylink/legacylink-bridge/internal/transport"
	"github.com/legacylink/legacylink-bridge/internal/wire"
)

type readerState int

const (
	readerIdle readerState = iota
	readerReceivingHeader
	readerReceivingPayload
	readerReceivingTrailer
)

// ReadCompleter receives the outcome of a Reader.Read call: the final
// status and, on success, the number of payload bytes written into dst.
type ReadCompleter func(status transport.Status, n int)

// Reader scans an incoming byte stream for valid frames, resynchronising on
// header corruption, and reassembles one payload per Read call into the
// caller-supplied destination buffer.
type Reader struct {
	stream transport.ByteStream
	state  readerState

	headerBuf [wire.HeaderLen]byte
	headerLen int

	trailerBuf [wire.TrailerLen]byte
	trailerLen int

	dst        []byte
	payloadLen int // LEN from the header, as seen on the wire
	target     int // min(len(dst), payloadLen), bytes actually copied into dst
	copied     int

	completer ReadCompleter
}

// NewReader returns a Reader that scans stream.
func NewReader(stream transport.ByteStream) *Reader {
	return &Reader{stream: stream, state: readerIdle}
}

// Read arms the reader to deliver one payload into dst. It fails
// synchronously with ErrBusy if a read is already in progress. done is
// invoked exactly once when a valid frame has been received (or sync loses
// the link); frames that fail CRC or header validation are discarded
// internally and never surfaced — Read keeps scanning until a valid frame
// arrives or the stream itself reports a non-OK status.
func (r *Reader) Read(dst []byte, done ReadCompleter) error {
	if r.state != readerIdle {
		return ErrBusy
	}
	r.dst = dst
	r.completer = done
	r.state = readerReceivingHeader
	r.headerLen = 0
	r.startHeaderRead()
	return nil
}

// Cancel requests cancellation of the in-flight read. A no-op if idle.
func (r *Reader) Cancel() {
	if r.state == readerIdle {
		return
	}
	r.stream.CancelRead()
}

func (r *Reader) startHeaderRead() {
	r.stream.StartRead(r.headerBuf[r.headerLen:], r.onHeaderRead)
}

func (r *Reader) onHeaderRead(res transport.ReadResult) {
	if res.Status != transport.StatusOK {
		r.finish(res.Status, 0)
		return
	}
	r.headerLen += res.N
	if r.headerLen < len(r.headerBuf) {
		r.startHeaderRead()
		return
	}
	r.evaluateHeader()
}

// evaluateHeader applies the resynchronisation table: a malformed header
// byte is discarded and the remainder shifted down, guaranteeing forward
// progress on garbage input.
func (r *Reader) evaluateHeader() {
	discard := 0
	switch {
	case r.headerBuf[0] != wire.FramePrefix:
		discard = 1
	case r.headerBuf[1]&0x80 != 0:
		discard = 2
	case wire.CRC8(r.headerBuf[:2]) != r.headerBuf[2]:
		discard = 3
	}
	if discard > 0 {
		metrics.AddHeaderResyncs(discard)
		r.headerLen = copy(r.headerBuf[:], r.headerBuf[discard:r.headerLen])
		r.startHeaderRead()
		return
	}
	r.payloadLen = int(r.headerBuf[1])
	r.target = min(len(r.dst), r.payloadLen)
	r.copied = 0
	r.state = readerReceivingPayload
	r.startPayloadRead()
}

func (r *Reader) startPayloadRead() {
	if r.copied >= r.target {
		r.startTrailerRead()
		return
	}
	r.stream.StartRead(r.dst[r.copied:r.target], r.onPayloadRead)
}

func (r *Reader) onPayloadRead(res transport.ReadResult) {
	if res.Status != transport.StatusOK {
		r.finish(res.Status, 0)
		return
	}
	r.copied += res.N
	r.startPayloadRead()
}

func (r *Reader) startTrailerRead() {
	r.trailerLen = 0
	r.state = readerReceivingTrailer
	r.stream.StartRead(r.trailerBuf[:], r.onTrailerRead)
}

func (r *Reader) onTrailerRead(res transport.ReadResult) {
	if res.Status != transport.StatusOK {
		r.finish(res.Status, 0)
		return
	}
	r.trailerLen += res.N
	if r.trailerLen < len(r.trailerBuf) {
		r.stream.StartRead(r.trailerBuf[r.trailerLen:], r.onTrailerRead)
		return
	}
	trailer := wire.DecodeTrailer(r.trailerBuf[:])
	if !wire.CRC16Residue(r.dst[:r.target], trailer) {
		// Mismatch: per the propagation policy this is handled locally,
		// never surfaced. Go back to header scanning on the same stream.
		metrics.IncTrailerMismatch()
		r.state = readerReceivingHeader
		r.headerLen = 0
		r.startHeaderRead()
		return
	}
	metrics.IncFramesRx()
	r.finish(transport.StatusOK, r.target)
}

func (r *Reader) finish(status transport.Status, n int) {
	r.state = readerIdle
	c := r.completer
	r.completer = nil
	r.dst = nil
	if c != nil {
		c(status, n)
	}
}
