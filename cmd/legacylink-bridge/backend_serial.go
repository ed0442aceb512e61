package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/legacylink/legacylink-bridge/internal/serial"
	"github.com/legacylink/legacylink-bridge/internal/transport"
)

// openSerialPort is a hook for tests (overridden in unit tests).
var openSerialPort = serial.Open

// initSerialBackend opens the physical serial/USB-CDC device and wraps it as
// a worker-serialized transport.ByteStream.
func initSerialBackend(ctx context.Context, cfg *appConfig, worker *transport.Worker, l *slog.Logger) (transport.ByteStream, func(), error) {
	sp, err := openSerialPort(cfg.serialDev, cfg.baud, cfg.serialReadTO)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open serial: %w", err)
	}
	l.Info("serial_open", "device", cfg.serialDev, "baud", cfg.baud)
	stream := transport.Serialize(transport.NewSerialStream(sp), worker)
	return stream, func() { _ = sp.Close() }, nil
}
