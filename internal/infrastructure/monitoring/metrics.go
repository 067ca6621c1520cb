// Package monitoring provides Prometheus metrics for the log pipeline:
// ingestion throughput, buffer occupancy, subscriber membership, and
// broadcast delivery outcomes, plus a Gin middleware for the HTTP surface.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Ingestion metrics
	IngestConnections prometheus.Gauge
	RecordsIngested   prometheus.Counter
	DecodeFailures    prometheus.Counter

	// Buffer metrics
	BufferSize    prometheus.Gauge
	RecordsStored prometheus.Counter

	// Broadcast metrics
	Subscribers        prometheus.Gauge
	RecordsDelivered   prometheus.Counter
	DeliveriesDropped  prometheus.Counter
	SubscribersEvicted prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a metrics collector registered on the default registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shepherd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shepherd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		IngestConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shepherd_ingest_connections",
				Help: "Number of open agent connections",
			},
		),
		RecordsIngested: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shepherd_records_ingested_total",
				Help: "Total number of records decoded and accepted",
			},
		),
		DecodeFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shepherd_decode_failures_total",
				Help: "Total number of ingest frames skipped as undecodable",
			},
		),

		BufferSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shepherd_buffer_records",
				Help: "Number of records currently retained in the buffer",
			},
		),
		RecordsStored: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shepherd_records_stored_total",
				Help: "Total number of records appended to the buffer",
			},
		),

		Subscribers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shepherd_subscribers",
				Help: "Number of registered live subscribers",
			},
		),
		RecordsDelivered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shepherd_records_delivered_total",
				Help: "Total number of per-subscriber record deliveries",
			},
		),
		DeliveriesDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shepherd_deliveries_dropped_total",
				Help: "Total number of deliveries dropped for slow or dead subscribers",
			},
		),
		SubscribersEvicted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shepherd_subscribers_evicted_total",
				Help: "Total number of subscribers removed after failed delivery",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shepherd_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric.
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncIngestConnections increments the open agent connection gauge.
func (m *Metrics) IncIngestConnections() { m.IngestConnections.Inc() }

// DecIngestConnections decrements the open agent connection gauge.
func (m *Metrics) DecIngestConnections() { m.IngestConnections.Dec() }

// IncRecordsIngested counts one accepted ingest frame.
func (m *Metrics) IncRecordsIngested() { m.RecordsIngested.Inc() }

// IncDecodeFailures counts one skipped undecodable frame.
func (m *Metrics) IncDecodeFailures() { m.DecodeFailures.Inc() }

// SetBufferSize sets the current buffer occupancy.
func (m *Metrics) SetBufferSize(n int) { m.BufferSize.Set(float64(n)) }

// IncRecordsStored counts one buffer append.
func (m *Metrics) IncRecordsStored() { m.RecordsStored.Inc() }

// SetSubscribers sets the registered subscriber gauge.
func (m *Metrics) SetSubscribers(n int) { m.Subscribers.Set(float64(n)) }

// IncRecordsDelivered counts one successful per-subscriber delivery.
func (m *Metrics) IncRecordsDelivered() { m.RecordsDelivered.Inc() }

// IncDeliveriesDropped counts one dropped delivery.
func (m *Metrics) IncDeliveriesDropped() { m.DeliveriesDropped.Inc() }

// IncSubscribersEvicted counts one subscriber removed after a failed send.
func (m *Metrics) IncSubscribersEvicted() { m.SubscribersEvicted.Inc() }
