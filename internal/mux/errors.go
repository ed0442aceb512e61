package mux

import "errors"

var (
	// ErrQueueFull is returned synchronously when both the transmitting and
	// queued slots are occupied; the protocol does not queue unboundedly.
	ErrQueueFull = errors.New("mux: transmit and queued slots both occupied")
	// ErrTooLarge is returned synchronously when payload+8 exceeds the
	// configured tx_mtu, or when rx_buf is longer than the 16-bit rx_length
	// field can express (65535 bytes).
	ErrTooLarge = errors.New("mux: request exceeds tx_mtu or rx_length range")
	// ErrSeqCollision is returned synchronously when a freshly allocated
	// sequence number already keys a live PendingAcks entry, which happens
	// only after the sequence counter has wrapped while an earlier
	// operation with that number is still awaiting its reply.
	ErrSeqCollision = errors.New("mux: sequence number collision in PendingAcks")
	// ErrClosed is returned by StartOperation after the link has gone down.
	ErrClosed = errors.New("mux: link closed")
)
