// Package mux implements EndpointMux: the client-side operation lifecycle
// and server-side dispatch of the endpoint RPC layer, sharing the single
// transmit stream the way the fibre legacy protocol does — one framer.Writer,
// contended between outgoing client requests and outgoing server replies,
// scheduled by Mux itself.
//
// Mux is not safe for concurrent use. Every exported method, and every
// framer completion callback Mux registers, must run on the same
// internal/transport.Worker; that is the single designated worker context
// the rest of this package assumes.
package mux

import (
	"encoding/binary"

	"github.com/legacylink/legacylink-bridge/internal/framer"
	"github.com/legacylink/legacylink-bridge/internal/logging"
	"github.com/legacylink/legacylink-bridge/internal/metrics"
	"github.com/legacylink/legacylink-bridge/internal/transport"
	"github.com/legacylink/legacylink-bridge/internal/wire"
)

// OperationHandle identifies a live client endpoint operation. The zero
// value is not valid; Valid reports whether a handle was actually issued.
// This is an explicit tagged value rather than a bit-packed sequence
// number, so a zero OperationHandle can never be mistaken for a live one.
type OperationHandle struct {
	seq   uint16
	valid bool
}

// Valid reports whether h was returned by a successful StartOperation call.
func (h OperationHandle) Valid() bool { return h.valid }

// OperationCompleter receives the final status of a client operation and,
// on StatusOK, the number of bytes copied into the caller's rx_buf.
type OperationCompleter func(status transport.Status, n int)

// EndpointHandler is the server-side dispatch collaborator. Handle consumes
// endpointID's request from input and writes its response into output,
// returning how many bytes of output it produced. ok is false for a
// malformed request; per the propagation policy no reply is then sent.
type EndpointHandler interface {
	Handle(endpointID uint16, input []byte, output []byte) (produced int, ok bool)
}

// Config carries the protocol constants that must match the peer.
type Config struct {
	// TxMTU bounds both the endpoint packet payload a client may send
	// (payload+8 <= TxMTU) and the response length the server will
	// produce (capped at TxMTU-2).
	TxMTU int
	// ProtocolVersion is the trailer value for endpoint 0 requests.
	ProtocolVersion uint16
	// JSONCRC is the trailer value for every endpoint other than 0,
	// computed over the server's JSON descriptor.
	JSONCRC uint16
}

type operation struct {
	endpointID uint16
	rxBuf      []byte
	completer  OperationCompleter
	reqBuf     []byte // composed request bytes, retained until the write starts
}

// Mux is one link's endpoint multiplexer: a client half that issues
// requests and tracks pending replies, and a server half that dispatches
// inbound requests to an EndpointHandler, sharing one transmit stream.
type Mux struct {
	cfg     Config
	handler EndpointHandler

	writer *framer.Writer
	reader *framer.Reader

	rxBuf     []byte
	txScratch []byte

	seqCounter uint16
	pending    map[uint16]*operation

	txBusy          bool
	transmittingSeq uint16 // 0 == none; request seq_no always has bit7 set, so never 0
	queuedSeq       uint16 // 0 == none

	parkedFrame []byte // raw inbound frame payload awaiting tx to free

	closed   bool
	onClosed func(transport.Status)
}

// New constructs a Mux. handler may be nil if this link never acts as a
// server (a pure client never receives non-reply frames in practice, but
// Mux still discards them gracefully if one arrives).
func New(cfg Config, handler EndpointHandler) *Mux {
	return &Mux{
		cfg:       cfg,
		handler:   handler,
		pending:   make(map[uint16]*operation),
		rxBuf:     make([]byte, wire.MaxPayloadLen),
		txScratch: make([]byte, cfg.TxMTU),
	}
}

// SetHandler installs or replaces the server-side dispatch target.
func (m *Mux) SetHandler(h EndpointHandler) { m.handler = h }

// Start begins reading stream. onClosed, if non-nil, is invoked once when
// the link goes down, that is when a read reports a status other than
// StatusOK/StatusCancelled; every pending operation has already been
// completed with that status by the time onClosed runs. A failed write is
// not treated as link-down: it completes only the operation whose request
// was being transmitted.
func (m *Mux) Start(stream transport.ByteStream, onClosed func(transport.Status)) {
	m.writer = framer.NewWriter(stream)
	m.reader = framer.NewReader(stream)
	m.onClosed = onClosed
	m.armRead()
}

func (m *Mux) trailerFor(endpointID uint16) uint16 {
	if endpointID == 0 {
		return m.cfg.ProtocolVersion
	}
	return m.cfg.JSONCRC
}

func (m *Mux) armRead() {
	if err := m.reader.Read(m.rxBuf, m.onReadFinished); err != nil {
		logging.L().Error("mux_read_not_rearmed", "error", err)
	}
}

func (m *Mux) onReadFinished(status transport.Status, n int) {
	if status != transport.StatusOK {
		if status == transport.StatusCancelled {
			// A cancelled read is not a terminal condition by itself; the
			// caller that cancelled is responsible for what happens next.
			return
		}
		m.handleClosed(status)
		return
	}

	buf := m.rxBuf[:n]
	if len(buf) < 2 {
		logging.L().Warn("mux_packet_too_short", "len", len(buf))
		m.armRead()
		return
	}
	seq := binary.LittleEndian.Uint16(buf[0:2])
	if wire.IsReply(seq) {
		m.handleReply(seq, buf[2:])
		m.armRead()
		return
	}
	m.handleServerRequest(buf)
}

func (m *Mux) handleReply(seq uint16, payload []byte) {
	key := wire.PendingKey(seq)
	op, ok := m.pending[key]
	if !ok {
		logging.L().Warn("mux_unexpected_ack", "seq", key)
		return
	}
	delete(m.pending, key)
	m.updatePendingGauge()
	n := copy(op.rxBuf, payload)
	metrics.IncOperationResult(metrics.StatusOK)
	if op.completer != nil {
		op.completer(transport.StatusOK, n)
	}
}

func (m *Mux) updatePendingGauge() { metrics.SetPendingOperations(len(m.pending)) }

// onWriteFinished is the single completion handler for every write Mux
// issues, whether it carried a client request or a server reply. Its
// priority order after bookkeeping the just-finished write — parked server
// reply, then queued client request — is the sole mechanism by which the
// client and server halves share one transmit channel.
func (m *Mux) onWriteFinished(status transport.Status, n int) {
	m.txBusy = false

	if seq := m.transmittingSeq; seq != 0 {
		m.transmittingSeq = 0
		if status != transport.StatusOK {
			if op, ok := m.pending[seq]; ok {
				delete(m.pending, seq)
				m.updatePendingGauge()
				metrics.IncOperationResult(statusLabel(status))
				if op.completer != nil {
					op.completer(status, 0)
				}
			}
		}
		// On success the operation stays in m.pending, now awaiting its reply.
	}

	if m.parkedFrame != nil {
		frame := m.parkedFrame
		m.parkedFrame = nil
		m.handleServerRequest(frame)
		return
	}

	if seq := m.queuedSeq; seq != 0 {
		m.queuedSeq = 0
		if op, ok := m.pending[seq]; ok {
			m.beginClientTransmit(seq, op)
		}
	}
}

func (m *Mux) handleClosed(status transport.Status) {
	if m.closed {
		return
	}
	m.closed = true
	for seq, op := range m.pending {
		delete(m.pending, seq)
		metrics.IncOperationResult(statusLabel(status))
		if op.completer != nil {
			op.completer(status, 0)
		}
	}
	m.updatePendingGauge()
	m.queuedSeq = 0
	m.transmittingSeq = 0
	m.parkedFrame = nil
	if m.onClosed != nil {
		m.onClosed(status)
	}
}

// statusLabel maps a transport.Status to the bounded-cardinality label
// metrics.IncOperationResult expects.
func statusLabel(status transport.Status) string {
	switch status {
	case transport.StatusOK:
		return metrics.StatusOK
	case transport.StatusCancelled:
		return metrics.StatusCancelled
	case transport.StatusClosed:
		return metrics.StatusClosed
	default:
		return metrics.StatusError
	}
}
