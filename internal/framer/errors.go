package framer

import "errors"

var (
	// ErrBusy is returned synchronously when Write/Read is called while a
	// previous operation is still in flight.
	ErrBusy = errors.New("framer: operation already in progress")
	// ErrTooLarge is returned synchronously when a payload exceeds
	// wire.MaxPayloadLen.
	ErrTooLarge = errors.New("framer: payload exceeds max frame length")
)
