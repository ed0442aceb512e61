package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/legacylink/legacylink-bridge/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters, gauges and histograms.
var (
	FramesRx = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frames_rx_total",
		Help: "Total frames successfully deframed (header + trailer valid).",
	})
	FramesTx = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frames_tx_total",
		Help: "Total frames successfully written to the transport.",
	})
	HeaderResyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "header_resyncs_total",
		Help: "Total bytes discarded while scanning for a valid frame header.",
	})
	TrailerMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trailer_mismatches_total",
		Help: "Total frames whose CRC-16 trailer failed to validate and were silently discarded.",
	})
	RequestsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "requests_dispatched_total",
		Help: "Total inbound endpoint requests successfully dispatched to a handler.",
	})
	RequestsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "requests_discarded_total",
		Help: "Total inbound endpoint requests discarded (no handler, endpoint trailer mismatch, malformed).",
	})
	RepliesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replies_sent_total",
		Help: "Total endpoint replies written to the transport.",
	})
	OperationResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "operation_results_total",
		Help: "Completed client operations by final status.",
	}, []string{"status"})
	PendingOperations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pending_operations",
		Help: "Current number of client operations awaiting transmission or a reply.",
	})
	DispatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_latency_seconds",
		Help:    "Time an inbound request spent in its endpoint handler.",
		Buckets: prometheus.DefBuckets,
	})
	LinkSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "link_event_subscribers",
		Help: "Current number of link-event subscribers.",
	})
	LinkEventFanout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "link_event_fanout",
		Help: "Number of subscribers targeted in the most recent link-event broadcast.",
	})
	LinkEventDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "link_event_drops_total",
		Help: "Total link events dropped by a slow subscriber under the drop backpressure policy.",
	})
	LinkEventKicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "link_event_kicks_total",
		Help: "Total subscribers disconnected under the kick backpressure policy.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrTransportRead  = "transport_read"
	ErrTransportWrite = "transport_write"
	ErrSerialOpen     = "serial_open"
	ErrMDNS           = "mdns"
	ErrHandlerPanic   = "handler_panic"
)

// Operation status label constants.
const (
	StatusOK        = "ok"
	StatusCancelled = "cancelled"
	StatusError     = "error"
	StatusClosed    = "closed"
)

// StartHTTP serves Prometheus metrics at /metrics and readiness at /ready.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for cheap in-process logging without scraping
// Prometheus.
var (
	localFramesRx        uint64
	localFramesTx        uint64
	localHeaderResyncs   uint64
	localTrailerMismatch uint64
	localDispatched      uint64
	localDiscarded       uint64
	localRepliesSent     uint64
	localPendingOps      uint64
	localErrors          uint64
	localLinkDrops       uint64
	localLinkKicks       uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	FramesRx          uint64
	FramesTx          uint64
	HeaderResyncs     uint64
	TrailerMismatches uint64
	RequestsDispatched uint64
	RequestsDiscarded uint64
	RepliesSent       uint64
	PendingOperations uint64
	Errors            uint64
	LinkEventDrops    uint64
	LinkEventKicks    uint64
}

func Snap() Snapshot {
	return Snapshot{
		FramesRx:           atomic.LoadUint64(&localFramesRx),
		FramesTx:           atomic.LoadUint64(&localFramesTx),
		HeaderResyncs:      atomic.LoadUint64(&localHeaderResyncs),
		TrailerMismatches:  atomic.LoadUint64(&localTrailerMismatch),
		RequestsDispatched: atomic.LoadUint64(&localDispatched),
		RequestsDiscarded:  atomic.LoadUint64(&localDiscarded),
		RepliesSent:        atomic.LoadUint64(&localRepliesSent),
		PendingOperations:  atomic.LoadUint64(&localPendingOps),
		Errors:             atomic.LoadUint64(&localErrors),
		LinkEventDrops:     atomic.LoadUint64(&localLinkDrops),
		LinkEventKicks:     atomic.LoadUint64(&localLinkKicks),
	}
}

func IncFramesRx() {
	FramesRx.Inc()
	atomic.AddUint64(&localFramesRx, 1)
}

func IncFramesTx() {
	FramesTx.Inc()
	atomic.AddUint64(&localFramesTx, 1)
}

// AddHeaderResyncs records n bytes discarded while scanning for a frame
// header.
func AddHeaderResyncs(n int) {
	HeaderResyncs.Add(float64(n))
	atomic.AddUint64(&localHeaderResyncs, uint64(n))
}

func IncTrailerMismatch() {
	TrailerMismatches.Inc()
	atomic.AddUint64(&localTrailerMismatch, 1)
}

func IncRequestsDispatched() {
	RequestsDispatched.Inc()
	atomic.AddUint64(&localDispatched, 1)
}

func IncRequestsDiscarded() {
	RequestsDiscarded.Inc()
	atomic.AddUint64(&localDiscarded, 1)
}

func IncRepliesSent() {
	RepliesSent.Inc()
	atomic.AddUint64(&localRepliesSent, 1)
}

func IncOperationResult(status string) {
	OperationResults.WithLabelValues(status).Inc()
}

func SetPendingOperations(n int) {
	PendingOperations.Set(float64(n))
	atomic.StoreUint64(&localPendingOps, uint64(n))
}

// ObserveDispatchLatency records the wall-clock time a server dispatch spent
// in the endpoint handler; building and sending the reply are not included.
func ObserveDispatchLatency(d time.Duration) {
	DispatchLatency.Observe(d.Seconds())
}

func SetLinkSubscribers(n int) {
	LinkSubscribers.Set(float64(n))
}

func SetLinkEventFanout(n int) {
	LinkEventFanout.Set(float64(n))
}

func IncLinkEventDrop() {
	LinkEventDrops.Inc()
	atomic.AddUint64(&localLinkDrops, 1)
}

func IncLinkEventKick() {
	LinkEventKicks.Inc()
	atomic.AddUint64(&localLinkKicks, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge and pre-registers error label
// series so the first error of each kind doesn't pay registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ErrTransportRead, ErrTransportWrite, ErrSerialOpen, ErrMDNS, ErrHandlerPanic} {
		Errors.WithLabelValues(lbl).Add(0)
	}
	for _, s := range []string{StatusOK, StatusCancelled, StatusError, StatusClosed} {
		OperationResults.WithLabelValues(s).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
