package main

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/legacylink/legacylink-bridge/internal/endpoint0"
	"github.com/legacylink/legacylink-bridge/internal/mux"
	"github.com/legacylink/legacylink-bridge/internal/transport"
	"github.com/legacylink/legacylink-bridge/internal/wire"
)

func TestLoopBackendAnswersVersionQuery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &appConfig{backend: "loop", txMTU: 64}
	worker := transport.NewWorker(ctx, 8)
	defer worker.Close()

	stream, cleanup, err := initLoopBackend(ctx, cfg, worker, testLogger())
	if err != nil {
		t.Fatalf("initLoopBackend: %v", err)
	}
	defer cleanup()

	mcfg := mux.Config{TxMTU: cfg.txMTU, ProtocolVersion: wire.ProtocolVersion, JSONCRC: endpoint0.JSONCRC}
	m := mux.New(mcfg, nil)

	done := make(chan struct{})
	worker.Post(func() {
		m.Start(stream, func(transport.Status) {})

		req := make([]byte, 4)
		binary.LittleEndian.PutUint32(req, 0xFFFFFFFF)
		rxBuf := make([]byte, 4)
		_, err := m.StartOperation(0, req, rxBuf, func(status transport.Status, n int) {
			defer close(done)
			if status != transport.StatusOK {
				t.Errorf("unexpected status: %v", status)
				return
			}
			got := binary.LittleEndian.Uint32(rxBuf[:n])
			if got != endpoint0.JSONVersionID {
				t.Errorf("version id = %d, want %d", got, endpoint0.JSONVersionID)
			}
		})
		if err != nil {
			t.Errorf("StartOperation: %v", err)
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for bootstrap reply")
	}
}
