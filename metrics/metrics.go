// Package metrics exposes Prometheus collectors for streams, frames, HTTP
// requests and published events, and serves them on a separate listener.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kbukum/eventfeed/eventstore"
	"github.com/kbukum/eventfeed/sse"
	"github.com/kbukum/eventfeed/version"
)

const namespace = "eventfeed"

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	StreamsActive   prometheus.Gauge
	StreamsTotal    *prometheus.CounterVec
	FramesSent      prometheus.Counter
	FrameBytes      prometheus.Counter
	EventsPublished *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

var (
	_ sse.Observer               = (*Metrics)(nil)
	_ eventstore.PublishObserver = (*Metrics)(nil)
)

// New registers the collectors, plus Go runtime and process collectors, on
// a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	build := version.Get()
	factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "build_info",
		Help:        "Always 1; labels describe the running build.",
		ConstLabels: prometheus.Labels{"version": build.Version, "commit": build.GitCommit, "go_version": build.GoVersion},
	}).Set(1)

	return &Metrics{
		registry: reg,
		StreamsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Number of event streams currently open",
		}),
		StreamsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Stream requests by outcome",
		}, []string{"result"}),
		FramesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of event frames written to clients",
		}),
		FrameBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_bytes_total",
			Help:      "Total bytes of event frames written to clients",
		}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of events appended to the log",
		}, []string{"source"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of non-streaming HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// StreamRejected implements sse.Observer.
func (m *Metrics) StreamRejected() {
	m.StreamsTotal.WithLabelValues("rejected").Inc()
}

// StreamRefused implements sse.Observer.
func (m *Metrics) StreamRefused() {
	m.StreamsTotal.WithLabelValues("refused").Inc()
}

// StreamOpened implements sse.Observer.
func (m *Metrics) StreamOpened() {
	m.StreamsActive.Inc()
}

// FrameSent implements sse.Observer.
func (m *Metrics) FrameSent(bytes int) {
	m.FramesSent.Inc()
	m.FrameBytes.Add(float64(bytes))
}

// StreamClosed implements sse.Observer.
func (m *Metrics) StreamClosed(t sse.Termination) {
	m.StreamsActive.Dec()
	m.StreamsTotal.WithLabelValues(string(t)).Inc()
}

// EventPublished implements eventstore.PublishObserver.
func (m *Metrics) EventPublished(source string) {
	m.EventsPublished.WithLabelValues(source).Inc()
}

// Middleware counts requests by matched route. Streaming responses are
// counted but left out of the duration histogram.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		if c.Writer.Header().Get("Content-Type") != "text/event-stream" {
			m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		}
	}
}
