package mux

import (
	"context"
	"fmt"

	"github.com/legacylink/legacylink-bridge/internal/metrics"
	"github.com/legacylink/legacylink-bridge/internal/transport"
	"github.com/legacylink/legacylink-bridge/internal/wire"
)

// StartOperation issues a request to endpointID carrying txBuf and wanting
// up to len(rxBuf) bytes of reply. completer is invoked exactly once, on
// this worker, whether the operation is sent synchronously, queued,
// cancelled, or the link closes first.
//
// It fails synchronously — without ever calling completer — with
// ErrTooLarge if txBuf would not fit tx_mtu or rxBuf is longer than 65535
// bytes, ErrSeqCollision if the freshly allocated sequence number is still
// held by an earlier operation after the counter wrapped, or ErrQueueFull
// if both the transmitting and queued slots are already occupied.
func (m *Mux) StartOperation(endpointID uint16, txBuf []byte, rxBuf []byte, completer OperationCompleter) (OperationHandle, error) {
	if m.closed {
		return OperationHandle{}, ErrClosed
	}
	if len(txBuf)+8 > m.cfg.TxMTU || len(rxBuf) > 0xFFFF {
		return OperationHandle{}, ErrTooLarge
	}
	if m.txBusy && m.queuedSeq != 0 {
		return OperationHandle{}, ErrQueueFull
	}

	seq := wire.NextSeq(m.seqCounter)
	if _, exists := m.pending[seq]; exists {
		return OperationHandle{}, ErrSeqCollision
	}
	m.seqCounter = seq

	trailer := m.trailerFor(endpointID)
	reqBuf := make([]byte, wire.RequestHeaderLen+len(txBuf)+2)
	wire.BuildRequest(reqBuf, seq, endpointID, true, uint16(len(rxBuf)), txBuf, trailer)

	op := &operation{endpointID: endpointID, rxBuf: rxBuf, completer: completer, reqBuf: reqBuf}
	m.pending[seq] = op
	m.updatePendingGauge()

	if m.txBusy {
		m.queuedSeq = seq
		return OperationHandle{seq: seq, valid: true}, nil
	}

	m.beginClientTransmit(seq, op)
	return OperationHandle{seq: seq, valid: true}, nil
}

func (m *Mux) beginClientTransmit(seq uint16, op *operation) {
	m.transmittingSeq = seq
	m.txBusy = true
	if err := m.writer.Write(op.reqBuf, m.onWriteFinished); err != nil {
		// The writer can only refuse with ErrBusy (already ruled out by
		// m.txBusy bookkeeping) or ErrTooLarge (already ruled out in
		// StartOperation); treat anything else as a local protocol fault.
		m.txBusy = false
		m.transmittingSeq = 0
		delete(m.pending, seq)
		m.updatePendingGauge()
		metrics.IncOperationResult(metrics.StatusError)
		if op.completer != nil {
			op.completer(transport.StatusError, 0)
		}
	}
}

// CancelOperation cancels a previously started operation. It is idempotent
// and a no-op for an unknown or already-completed handle.
func (m *Mux) CancelOperation(h OperationHandle) {
	if !h.valid {
		return
	}
	seq := h.seq

	if m.queuedSeq == seq {
		m.queuedSeq = 0
		m.completeCancelled(seq)
		return
	}
	if m.transmittingSeq == seq {
		m.writer.Cancel()
		return
	}
	m.completeCancelled(seq)
}

// Do is a context.Context-based convenience wrapper over
// StartOperation/CancelOperation for callers that want synchronous-looking
// usage instead of registering a completer themselves. Since every Mux
// method must run on m's single worker, Do posts the start (and, if ctx is
// cancelled first, the cancel) onto worker rather than touching m directly
// from the calling goroutine.
func (m *Mux) Do(ctx context.Context, worker *transport.Worker, endpointID uint16, txBuf, rxBuf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	type result struct {
		status transport.Status
		n      int
	}
	done := make(chan result, 1)
	started := make(chan error, 1)
	var handle OperationHandle

	if !worker.Post(func() {
		h, err := m.StartOperation(endpointID, txBuf, rxBuf, func(status transport.Status, n int) {
			done <- result{status, n}
		})
		handle = h
		started <- err
	}) {
		return 0, ErrClosed
	}

	// Always wait for the post to actually run so handle is known before
	// Do can be cancelled: racing this against ctx.Done() could leave a
	// started operation with no handle to cancel it by.
	if err := <-started; err != nil {
		return 0, err
	}

	select {
	case res := <-done:
		if res.status != transport.StatusOK {
			return 0, fmt.Errorf("mux: operation failed: %s", res.status)
		}
		return res.n, nil
	case <-ctx.Done():
		worker.Post(func() { m.CancelOperation(handle) })
		<-done // CancelOperation always completes the pending operation.
		return 0, ctx.Err()
	}
}

func (m *Mux) completeCancelled(seq uint16) {
	op, ok := m.pending[seq]
	if !ok {
		return
	}
	delete(m.pending, seq)
	m.updatePendingGauge()
	metrics.IncOperationResult(metrics.StatusCancelled)
	if op.completer != nil {
		op.completer(transport.StatusCancelled, 0)
	}
}
