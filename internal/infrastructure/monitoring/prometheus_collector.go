package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exports gateway metrics.
type PrometheusCollector struct {
	connectionsActive prometheus.Gauge
	roomsActive       prometheus.Gauge
	connectionsTotal  prometheus.Counter

	eventsHandled       *prometheus.CounterVec
	eventErrors         *prometheus.CounterVec
	rateLimitRejections *prometheus.CounterVec

	broadcastDuration prometheus.Histogram
	eventDuration     *prometheus.HistogramVec

	documentVersion *prometheus.GaugeVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		connectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "slate_connections_active",
			Help: "Number of live websocket connections on this instance",
		}),
		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "slate_rooms_active",
			Help: "Number of rooms with at least one attached connection",
		}),
		connectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "slate_connections_total",
			Help: "Total websocket connections accepted",
		}),
		eventsHandled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "slate_events_handled_total",
			Help: "Realtime events handled, by event name",
		}, []string{"event"}),
		eventErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "slate_event_errors_total",
			Help: "Realtime events rejected with a typed error, by code",
		}, []string{"code"}),
		rateLimitRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "slate_rate_limit_rejections_total",
			Help: "Events rejected by the per-event rate limiter",
		}, []string{"event"}),
		broadcastDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "slate_broadcast_duration_seconds",
			Help:    "Room fan-out latency",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		eventDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slate_event_duration_seconds",
			Help:    "End-to-end event handling latency, by event name",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"event"}),
		documentVersion: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "slate_document_version",
			Help: "Current whiteboard document version per room",
		}, []string{"room_id"}),
	}
}

func (p *PrometheusCollector) RecordConnectionOpened() {
	p.connectionsTotal.Inc()
	p.connectionsActive.Inc()
}

func (p *PrometheusCollector) RecordConnectionClosed() {
	p.connectionsActive.Dec()
}

func (p *PrometheusCollector) SetActiveRooms(n int) {
	p.roomsActive.Set(float64(n))
}

func (p *PrometheusCollector) RecordEventHandled(event string, duration time.Duration) {
	p.eventsHandled.WithLabelValues(event).Inc()
	p.eventDuration.WithLabelValues(event).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordEventError(code string) {
	p.eventErrors.WithLabelValues(code).Inc()
}

func (p *PrometheusCollector) RecordRateLimitRejection(event string) {
	p.rateLimitRejections.WithLabelValues(event).Inc()
}

func (p *PrometheusCollector) RecordBroadcast(duration time.Duration) {
	p.broadcastDuration.Observe(duration.Seconds())
}

func (p *PrometheusCollector) SetDocumentVersion(roomID string, version int64) {
	p.documentVersion.WithLabelValues(roomID).Set(float64(version))
}
