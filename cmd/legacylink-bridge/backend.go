package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/legacylink/legacylink-bridge/internal/transport"
)

// initBackend opens the chosen transport and wraps it so every completion it
// delivers is posted to worker, the single goroutine the caller's Mux runs
// on. It returns a cleanup function that releases whatever resources the
// backend opened (a serial port, a background loop-peer worker, ...).
func initBackend(ctx context.Context, cfg *appConfig, worker *transport.Worker, l *slog.Logger) (transport.ByteStream, func(), error) {
	switch cfg.backend {
	case "serial":
		return initSerialBackend(ctx, cfg, worker, l)
	case "loop":
		return initLoopBackend(ctx, cfg, worker, l)
	default:
		return nil, func() {}, fmt.Errorf("unknown backend %q (use serial|loop)", cfg.backend)
	}
}
