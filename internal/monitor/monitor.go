// Package monitor implements the telemetry collaborator spec.md names but
// leaves unspecified: a recorder invoked by the core at transfer start and
// end (plus RecordWindow's live window/RTT gauge updates from the sender),
// exposing goodput/overhead/retransmit counters as Prometheus metrics. Grounded on runZeroInc-sockstats's Collector pattern
// (pkg/exporter/exporter.go) for the metric shapes and on its use of
// github.com/rs/xid for per-connection identifiers.
package monitor

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
)

// Recorder tracks a single transfer's telemetry and exports it on a private
// Prometheus registry.
type Recorder struct {
	role string // "sender" or "receiver"

	registry          *prometheus.Registry
	goodputBytes      prometheus.Counter
	overheadBytes     prometheus.Counter
	retransmits       prometheus.Counter
	windowGauge       prometheus.Gauge
	rttGauge          prometheus.Gauge

	mu        sync.Mutex
	startedAt time.Time
	id        xid.ID
}

// New creates a Recorder for the given role ("sender" or "receiver").
func New(role string) *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		role:     role,
		registry: reg,
		goodputBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reldgram_goodput_bytes_total",
			Help: "Payload bytes successfully delivered.",
		}),
		overheadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reldgram_overhead_bytes_total",
			Help: "Non-payload bytes transmitted (headers, retransmits, ACKs).",
		}),
		retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reldgram_retransmits_total",
			Help: "Number of packet retransmissions (timeout + fast retransmit).",
		}),
		windowGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reldgram_window_size",
			Help: "Current sender congestion window.",
		}),
		rttGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reldgram_rtt_seconds",
			Help: "Current smoothed round-trip time estimate.",
		}),
	}
	reg.MustRegister(r.goodputBytes, r.overheadBytes, r.retransmits, r.windowGauge, r.rttGauge)
	return r
}

// Serve exposes the registry over HTTP at addr until ctx-independent
// shutdown; callers typically run it in its own goroutine and ignore the
// returned error past http.ErrServerClosed.
func (r *Recorder) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		return fmt.Errorf("monitor: serve %s: %w", addr, err)
	}
	return nil
}

// TransferStart is invoked once, at the very start of a transfer, per
// spec.md §1's "the core invokes it at transfer start/end only."
func (r *Recorder) TransferStart(totalPackets int, totalBytes int64) xid.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = xid.New()
	r.startedAt = time.Now()
	return r.id
}

// TransferEnd is invoked once, when a side reaches FINISHED.
func (r *Recorder) TransferEnd(goodputBytes, overheadBytes int64, retransmits int, finalWindow int, rtt time.Duration) {
	r.goodputBytes.Add(float64(goodputBytes))
	r.overheadBytes.Add(float64(overheadBytes))
	r.retransmits.Add(float64(retransmits))
	r.windowGauge.Set(float64(finalWindow))
	r.rttGauge.Set(rtt.Seconds())
}

// RecordWindow updates the live window gauge; called periodically by the
// sender's ACK/timer loop, not just at start/end, since it's a gauge rather
// than a start/end-only counter.
func (r *Recorder) RecordWindow(window int, rtt time.Duration) {
	r.windowGauge.Set(float64(window))
	r.rttGauge.Set(rtt.Seconds())
}
