package mux

import (
	"encoding/binary"
	"time"

	"github.com/legacylink/legacylink-bridge/internal/logging"
	"github.com/legacylink/legacylink-bridge/internal/metrics"
	"github.com/legacylink/legacylink-bridge/internal/wire"
)

// handleServerRequest processes one inbound non-reply frame payload, or
// resumes processing one that was parked earlier by onWriteFinished. buf
// must not alias m.rxBuf when called from the resume path (it is the
// caller's copy); when called fresh from onReadFinished it aliases m.rxBuf,
// which is safe because nothing here retains buf past this call — the next
// read is armed only after we are done with it.
func (m *Mux) handleServerRequest(buf []byte) {
	seqNo, endpointID, expectResponse, rxLength, input, trailer, ok := wire.ParseRequest(buf)
	if !ok {
		logging.L().Warn("mux_request_too_short", "len", len(buf))
		metrics.IncRequestsDiscarded()
		m.armRead()
		return
	}

	if expectResponse && m.txBusy {
		// TX contention: park the raw frame and stop reading until the
		// in-flight write frees the channel. onWriteFinished resumes this
		// exact call once that happens, ahead of any queued client request.
		m.parkedFrame = append([]byte(nil), buf...)
		return
	}

	if m.handler == nil {
		logging.L().Warn("mux_no_handler_installed", "endpoint", endpointID)
		metrics.IncRequestsDiscarded()
		m.armRead()
		return
	}

	expected := m.trailerFor(endpointID)
	if trailer != expected {
		logging.L().Debug("mux_trailer_mismatch", "endpoint", endpointID, "expected", expected, "got", trailer)
		metrics.IncRequestsDiscarded()
		m.armRead()
		return
	}

	respCap := int(rxLength)
	if max := m.cfg.TxMTU - 2; respCap > max {
		respCap = max
	}
	if respCap < 0 {
		respCap = 0
	}
	output := m.txScratch[2 : 2+respCap]
	start := time.Now()
	produced, handled := m.handler.Handle(endpointID, input, output)
	metrics.ObserveDispatchLatency(time.Since(start))

	if handled {
		metrics.IncRequestsDispatched()
		if expectResponse {
			replySeq := wire.ReplySeq(seqNo)
			binary.LittleEndian.PutUint16(m.txScratch[0:2], replySeq)
			reply := append([]byte(nil), m.txScratch[:2+produced]...)
			m.sendReply(reply)
		}
	} else {
		metrics.IncRequestsDiscarded()
	}
	m.armRead()
}

func (m *Mux) sendReply(reply []byte) {
	m.txBusy = true
	if err := m.writer.Write(reply, m.onWriteFinished); err != nil {
		logging.L().Error("mux_reply_write_failed", "error", err)
		m.txBusy = false
		return
	}
	metrics.IncRepliesSent()
}
