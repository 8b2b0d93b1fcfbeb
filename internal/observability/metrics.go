package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/qrtctl/internal/protocol"
	"github.com/danmuck/qrtctl/internal/qrt"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "qrtctl"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "frames_total",
			Help:      "Frames received by packet type.",
		},
		[]string{"type"},
	)
	frameBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "frame_bytes_total",
			Help:      "Frame bytes received by packet type, headers included.",
		},
		[]string{"type"},
	)
	decodeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "decode_failures_total",
			Help:      "Frames dropped because their body could not be decoded, by error kind.",
		},
		[]string{"kind"},
	)
	disconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "disconnects_total",
			Help:      "Connection teardowns by cause kind; local disconnects are \"local\".",
		},
		[]string{"kind", "fatal"},
	)
	eventsObserved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_total",
			Help:      "Server events by code and whether a waiter claimed them.",
		},
		[]string{"event", "claimed"},
	)
	connectionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "state",
			Help:      "Connection state: 0 disconnected, 1 connecting, 2 connected.",
		},
	)
	pendingRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "pending_requests",
			Help:      "Requests waiting for a correlated response.",
		},
	)
	pendingWaiters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "pending_event_waits",
			Help:      "Registered event waits not yet resolved.",
		},
	)
	streamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "clients",
			Help:      "Connected websocket stream clients.",
		},
	)
	streamDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "dropped_total",
			Help:      "Messages not queued to a slow websocket client.",
		},
	)
	recordedFrames = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "frames_total",
			Help:      "Responses written to the JSONL recording.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			framesReceived, frameBytes, decodeFailures, disconnects, eventsObserved,
			connectionState, pendingRequests, pendingWaiters,
			streamClients, streamDropped, recordedFrames,
		)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordStreamClients(n int) {
	RegisterMetrics()
	streamClients.Set(float64(n))
}

func RecordStreamDropped() {
	RegisterMetrics()
	streamDropped.Inc()
}

func RecordRecordedFrame() {
	RegisterMetrics()
	recordedFrames.Inc()
}

// EngineMetrics exports engine telemetry. It implements qrt.Observer.
type EngineMetrics struct{}

var _ qrt.Observer = EngineMetrics{}

func NewEngineMetrics() EngineMetrics {
	RegisterMetrics()
	return EngineMetrics{}
}

func (EngineMetrics) FrameReceived(t protocol.PacketType, size int) {
	framesReceived.WithLabelValues(t.String()).Inc()
	frameBytes.WithLabelValues(t.String()).Add(float64(size))
}

func (EngineMetrics) DecodeFailed(err error) {
	decodeFailures.WithLabelValues(protocol.Classify(err).String()).Inc()
}

func (EngineMetrics) Disconnected(cause error) {
	kind := "local"
	if cause != nil {
		kind = protocol.Classify(cause).String()
	}
	disconnects.WithLabelValues(kind, strconv.FormatBool(protocol.IsFatal(cause))).Inc()
}

func (EngineMetrics) EventObserved(code protocol.EventCode, claimed int) {
	eventsObserved.WithLabelValues(code.String(), strconv.FormatBool(claimed > 0)).Inc()
}

func (EngineMetrics) StateChanged(s qrt.State) {
	connectionState.Set(float64(s))
}

func (EngineMetrics) PendingChanged(requests, waiters int) {
	pendingRequests.Set(float64(requests))
	pendingWaiters.Set(float64(waiters))
}
