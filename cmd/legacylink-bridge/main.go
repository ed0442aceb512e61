package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/legacylink/legacylink-bridge/internal/endpoint0"
	"github.com/legacylink/legacylink-bridge/internal/linkevents"
	"github.com/legacylink/legacylink-bridge/internal/metrics"
	"github.com/legacylink/legacylink-bridge/internal/mux"
	"github.com/legacylink/legacylink-bridge/internal/transport"
	"github.com/legacylink/legacylink-bridge/internal/wire"
)

// workerQueueLen sizes the bridge's protocol worker: one outstanding write
// completion, one outstanding read completion, a handful of link/bootstrap
// events in flight. See transport.Worker.Post's documentation.
const workerQueueLen = 32

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("legacylink-bridge %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	bus := initLinkEvents(cfg, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	var ready atomic.Bool
	readySub := linkevents.NewSubscriber(cfg.linkEventBuffer)
	bus.Subscribe(readySub)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case ev := <-readySub.Out:
				switch ev.Kind {
				case linkevents.DescriptorReady:
					ready.Store(true)
				case linkevents.LinkDown:
					ready.Store(false)
				}
			case <-readySub.Closed:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	metrics.SetReadinessFunc(ready.Load)

	worker := transport.NewWorker(ctx, workerQueueLen)
	stream, cleanup, err := initBackend(ctx, cfg, worker, l)
	if err != nil {
		l.Error("backend_init_error", "error", err)
		return
	}

	mcfg := mux.Config{
		TxMTU:           cfg.txMTU,
		ProtocolVersion: wire.ProtocolVersion,
		JSONCRC:         endpoint0.JSONCRC,
	}
	m := mux.New(mcfg, endpoint0.New())
	worker.Post(func() {
		m.Start(stream, func(status transport.Status) {
			l.Warn("link_down", "status", status)
			bus.Publish(linkevents.Event{Kind: linkevents.LinkDown})
		})
		runBootstrap(m, bus, l)
	})

	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	go func() {
		if !cfg.mdnsEnable {
			return
		}
		if cfg.metricsAddr == "" {
			l.Warn("mdns_skipped_no_metrics_addr")
			return
		}
		_, portStr, err := net.SplitHostPort(cfg.metricsAddr)
		if err != nil {
			l.Warn("mdns_skipped_bad_metrics_addr", "error", err)
			return
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			l.Warn("mdns_skipped_bad_metrics_addr", "error", err)
			return
		}
		cleanupMDNS, err := startMDNS(ctx, cfg, port)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
			return
		}
		l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", port)
		go func() { <-ctx.Done(); cleanupMDNS() }()
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	cleanup()
	worker.Close()
	bus.Unsubscribe(readySub)
	wg.Wait()
}
