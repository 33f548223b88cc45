package monitoring

import (
	"strconv"
	"time"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Counters
	streamsStartedTotal  *prometheus.CounterVec
	streamsEnqueuedTotal *prometheus.CounterVec
	advancesTotal        *prometheus.CounterVec
	teardownsTotal       prometheus.Counter
	transportErrorsTotal *prometheus.CounterVec
	callEventsTotal      *prometheus.CounterVec
	resolutionsTotal     *prometheus.CounterVec
	commandsTotal        *prometheus.CounterVec

	// Gauges
	queueLength *prometheus.GaugeVec

	// Histograms
	httpRequestDuration *prometheus.HistogramVec
}

var (
	_ ports.PlaybackMetrics = (*PrometheusCollector)(nil)
	_ ports.CommandMetrics  = (*PrometheusCollector)(nil)
)

// NewPrometheusCollector registers the player metrics with reg. Pass
// prometheus.DefaultRegisterer in production.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	f := promauto.With(reg)

	return &PrometheusCollector{
		streamsStartedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callplayer_streams_started_total",
			Help: "Total number of streams started on an idle voice chat",
		}, []string{"stream_type"}),

		streamsEnqueuedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callplayer_streams_enqueued_total",
			Help: "Total number of stream requests queued behind a playing stream",
		}, []string{"stream_type"}),

		advancesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callplayer_queue_advances_total",
			Help: "Total number of queue advances by outcome",
		}, []string{"outcome"}),

		teardownsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "callplayer_teardowns_total",
			Help: "Total number of chats torn down",
		}),

		transportErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callplayer_transport_errors_total",
			Help: "Total number of failed call transport operations",
		}, []string{"op"}),

		callEventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callplayer_call_events_total",
			Help: "Total number of call events received from the bridge",
		}, []string{"kind"}),

		resolutionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callplayer_resolutions_total",
			Help: "Total number of media resolutions by source and result",
		}, []string{"source", "result"}),

		commandsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callplayer_commands_total",
			Help: "Total number of chat commands by name and result",
		}, []string{"command", "result"}),

		queueLength: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "callplayer_queue_length",
			Help: "Current number of requests in each chat queue, the playing one included",
		}, []string{"chat_id"}),

		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "callplayer_http_request_duration_seconds",
			Help:    "Duration of HTTP API requests",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
		}, []string{"method", "path", "status"}),
	}
}

func (p *PrometheusCollector) RecordStart(streamType domain.StreamType) {
	p.streamsStartedTotal.WithLabelValues(string(streamType)).Inc()
}

func (p *PrometheusCollector) RecordEnqueue(streamType domain.StreamType) {
	p.streamsEnqueuedTotal.WithLabelValues(string(streamType)).Inc()
}

func (p *PrometheusCollector) RecordAdvance(outcome domain.AdvanceOutcome) {
	p.advancesTotal.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusCollector) RecordTeardown() {
	p.teardownsTotal.Inc()
}

func (p *PrometheusCollector) RecordTransportError(op string) {
	p.transportErrorsTotal.WithLabelValues(op).Inc()
}

func (p *PrometheusCollector) RecordEvent(kind domain.EventKind) {
	if !kind.Known() {
		kind = "unknown"
	}
	p.callEventsTotal.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusCollector) RecordResolution(cached bool, err error) {
	source := "resolver"
	if cached {
		source = "cache"
	}
	p.resolutionsTotal.WithLabelValues(source, result(err)).Inc()
}

// SetQueueLength drops the chat's series once its queue is empty so ended
// chats do not linger in the exposition.
func (p *PrometheusCollector) SetQueueLength(chatID domain.ChatID, length int) {
	label := strconv.FormatInt(int64(chatID), 10)
	if length == 0 {
		p.queueLength.DeleteLabelValues(label)
		return
	}
	p.queueLength.WithLabelValues(label).Set(float64(length))
}

func (p *PrometheusCollector) RecordCommand(name string, err error) {
	p.commandsTotal.WithLabelValues(name, result(err)).Inc()
}

func (p *PrometheusCollector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	p.httpRequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
