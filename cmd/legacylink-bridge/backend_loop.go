package main

import (
	"context"
	"log/slog"

	"github.com/legacylink/legacylink-bridge/internal/endpoint0"
	"github.com/legacylink/legacylink-bridge/internal/mux"
	"github.com/legacylink/legacylink-bridge/internal/transport"
	"github.com/legacylink/legacylink-bridge/internal/wire"
)

// peerWorkerQueueLen bounds the background loop-peer's event queue; see
// transport.Worker.Post's documentation for the sizing rationale.
const peerWorkerQueueLen = 32

// initLoopBackend wires an in-memory pipe between the bridge's own Mux (run
// on worker, the caller's single protocol goroutine) and a second Mux
// standing in for the remote device, driven by its own background worker and
// answering with the same endpoint-0 descriptor this binary embeds. This
// exercises the full client/server transmit-contention path without any
// hardware attached.
func initLoopBackend(ctx context.Context, cfg *appConfig, worker *transport.Worker, l *slog.Logger) (transport.ByteStream, func(), error) {
	bridgeEnd, peerEnd := transport.NewPipe()

	peerWorker := transport.NewWorker(ctx, peerWorkerQueueLen)
	peerCfg := mux.Config{
		TxMTU:           cfg.txMTU,
		ProtocolVersion: wire.ProtocolVersion,
		JSONCRC:         endpoint0.JSONCRC,
	}
	peer := mux.New(peerCfg, endpoint0.New())
	peerWorker.Post(func() {
		peer.Start(transport.Serialize(peerEnd, peerWorker), func(status transport.Status) {
			l.Debug("loop_peer_closed", "status", status)
		})
	})

	l.Info("loop_backend_started")
	stream := transport.Serialize(bridgeEnd, worker)
	cleanup := func() {
		_ = bridgeEnd.(interface{ Close() error }).Close()
		peerWorker.Close()
	}
	return stream, cleanup, nil
}
