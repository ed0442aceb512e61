package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/legacylink/legacylink-bridge/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"frames_rx", snap.FramesRx,
					"frames_tx", snap.FramesTx,
					"header_resyncs", snap.HeaderResyncs,
					"trailer_mismatches", snap.TrailerMismatches,
					"requests_dispatched", snap.RequestsDispatched,
					"requests_discarded", snap.RequestsDiscarded,
					"replies_sent", snap.RepliesSent,
					"pending_operations", snap.PendingOperations,
					"errors", snap.Errors,
					"link_event_drops", snap.LinkEventDrops,
					"link_event_kicks", snap.LinkEventKicks,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
