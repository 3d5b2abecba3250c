// Package metrics exposes round trip statistics as prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector gathers the statistics of round trips made by a client. A nil Collector
// is valid and collects nothing.
type Collector struct {
	roundTripsTotal      *prometheus.CounterVec
	responsesTotal       *prometheus.CounterVec
	failuresTotal        *prometheus.CounterVec
	requestBytes         *prometheus.CounterVec
	bodyBytes            *prometheus.CounterVec
	timeToHeadersSeconds *prometheus.HistogramVec
	activeBodies         prometheus.Gauge
}

// New creates a collector. It must be registered in order to be exported, e.g. via
// prometheus.MustRegister.
func New(namespace string) *Collector {
	buckets := append([]float64{.001, .0025}, prometheus.DefBuckets...)

	return &Collector{
		roundTripsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "duplex_client",
			Name:      "round_trips_total",
			Help:      "Round trips started.",
		}, []string{"method"}),
		responsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "duplex_client",
			Name:      "responses_total",
			Help:      "Response heads received, by status code.",
		}, []string{"method", "code"}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "duplex_client",
			Name:      "failures_total",
			Help:      "Round trips failed, by the stage of failure.",
		}, []string{"method", "stage"}),
		requestBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "duplex_client",
			Name:      "request_bytes",
			Help:      "Bytes of requests written into duplexes.",
		}, []string{"method"}),
		bodyBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "duplex_client",
			Name:      "response_body_bytes",
			Help:      "Bytes of response bodies delivered to consumers.",
		}, []string{"method", "code"}),
		timeToHeadersSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "duplex_client",
			Name:      "time_to_headers_seconds",
			Help:      "Time elapsed until the response head was received.",
			Buckets:   buckets,
		}, []string{"method"}),
		activeBodies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "duplex_client",
			Name:      "active_bodies",
			Help:      "Response bodies being streamed at the moment.",
		}),
	}
}

// Stage tells at which point a round trip failed.
type Stage string

const (
	StageSend    Stage = "send"
	StageHeaders Stage = "headers"
	StageBody    Stage = "body"
)

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.roundTripsTotal.Collect(ch)
	c.responsesTotal.Collect(ch)
	c.failuresTotal.Collect(ch)
	c.requestBytes.Collect(ch)
	c.bodyBytes.Collect(ch)
	c.timeToHeadersSeconds.Collect(ch)
	c.activeBodies.Collect(ch)
}

// RoundTripStarted must be called once per round trip.
func (c *Collector) RoundTripStarted(method string) {
	if c == nil {
		return
	}

	c.roundTripsTotal.WithLabelValues(method).Inc()
}

// HeadersReceived records the response code and how long it took to get it.
func (c *Collector) HeadersReceived(method string, code int, since time.Time) {
	if c == nil {
		return
	}

	c.responsesTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	c.timeToHeadersSeconds.WithLabelValues(method).Observe(time.Since(since).Seconds())
}

// RequestSent records the number of bytes the request occupied on the wire.
func (c *Collector) RequestSent(method string, n int64) {
	if c == nil {
		return
	}

	c.requestBytes.WithLabelValues(method).Add(float64(n))
}

func (c *Collector) Failed(method string, stage Stage) {
	if c == nil {
		return
	}

	c.failuresTotal.WithLabelValues(method, string(stage)).Inc()
}

// BodyStarted and BodyFinished bracket the streaming of a response body.
func (c *Collector) BodyStarted() {
	if c == nil {
		return
	}

	c.activeBodies.Inc()
}

func (c *Collector) BodyFinished(method string, code int, delivered int64) {
	if c == nil {
		return
	}

	c.activeBodies.Dec()
	c.bodyBytes.WithLabelValues(method, strconv.Itoa(code)).Add(float64(delivered))
}
