package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. All record methods are safe on a
// nil receiver so components can run without instrumentation.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Terminal metrics
	SessionsActive  prometheus.Gauge
	SpawnsTotal     *prometheus.CounterVec
	SpawnDuration   prometheus.Histogram
	KillsTotal      prometheus.Counter
	KillDuration    prometheus.Histogram
	ReaderExits     *prometheus.CounterVec
	BytesRead       prometheus.Counter
	EventsPublished *prometheus.CounterVec
	EventQueueDepth prometheus.GaugeFunc

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time
	registry  *prometheus.Registry

	queueDepth func() int

	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current metric values for the JSON health endpoint
type MetricsSnapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	SessionsActive int64   `json:"sessions_active"`
	SpawnsTotal    int64   `json:"spawns_total"`
	SpawnFailures  int64   `json:"spawn_failures"`
	BytesRead      int64   `json:"bytes_read"`
	WSConnections  int64   `json:"ws_connections"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector registered on its own registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

// NewMetricsWithRegistry creates a metrics collector registered on reg.
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),
		registry:  reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termhost_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termhost_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termhost_sessions_active",
				Help: "Number of registered terminal sessions",
			},
		),
		SpawnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termhost_spawns_total",
				Help: "Total number of spawn attempts",
			},
			[]string{"status"},
		),
		SpawnDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "termhost_spawn_duration_seconds",
				Help:    "Time to allocate a PTY and start the shell",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		KillsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termhost_kills_total",
				Help: "Total number of sessions torn down",
			},
		),
		KillDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "termhost_kill_duration_seconds",
				Help:    "Time to stop a session and reap its shell",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5},
			},
		),
		ReaderExits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termhost_reader_exits_total",
				Help: "Reader loop terminations by reason",
			},
			[]string{"reason"},
		),
		BytesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termhost_pty_bytes_read_total",
				Help: "Bytes read from all PTYs",
			},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termhost_events_published_total",
				Help: "Events handed to the event sink",
			},
			[]string{"status"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termhost_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termhost_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	m.EventQueueDepth = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "termhost_event_queue_depth",
			Help: "Events waiting for the dispatcher",
		},
		func() float64 {
			m.mu.RLock()
			fn := m.queueDepth
			m.mu.RUnlock()
			if fn == nil {
				return 0
			}
			return float64(fn())
		},
	)
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "termhost_uptime_seconds",
			Help: "Backend uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry the metrics are exposed from.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveQueueDepth installs the function sampled by the queue depth gauge.
func (m *Metrics) ObserveQueueDepth(fn func() int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.queueDepth = fn
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordSpawn records a spawn attempt; status is "success" or an error class
func (m *Metrics) RecordSpawn(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SpawnsTotal.WithLabelValues(status).Inc()
	m.SpawnDuration.Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.SpawnsTotal++
	if status != "success" {
		m.snapshot.SpawnFailures++
	}
	m.mu.Unlock()
}

// RecordKill records a completed kill
func (m *Metrics) RecordKill(duration time.Duration) {
	if m == nil {
		return
	}
	m.KillsTotal.Inc()
	m.KillDuration.Observe(duration.Seconds())
}

// SetSessionsActive sets the number of registered sessions
func (m *Metrics) SetSessionsActive(count int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(count))

	m.mu.Lock()
	m.snapshot.SessionsActive = int64(count)
	m.mu.Unlock()
}

// RecordRead records bytes read from a PTY
func (m *Metrics) RecordRead(n int) {
	if m == nil {
		return
	}
	m.BytesRead.Add(float64(n))

	m.mu.Lock()
	m.snapshot.BytesRead += int64(n)
	m.mu.Unlock()
}

// RecordReaderExit records why a reader loop stopped ("eof", "error", "stopped")
func (m *Metrics) RecordReaderExit(reason string) {
	if m == nil {
		return
	}
	m.ReaderExits.WithLabelValues(reason).Inc()
}

// RecordPublish records the outcome of handing an event to the sink
func (m *Metrics) RecordPublish(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.EventsPublished.WithLabelValues(status).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.WSConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.WSConnections--
	m.mu.Unlock()
}

// RecordWSMessage records a websocket message; direction is "in" or "out"
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// Snapshot returns the current values for the JSON health endpoint
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}
