package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-pushclient/pkg/types"
)

const namespace = "pushclient"

// Collector 基于 Prometheus 的 Reporter 实现
//
// 指标注册在私有 Registry 上，嵌入方可通过 Registry() 暴露。
type Collector struct {
	registry *prometheus.Registry

	transitions   *prometheus.CounterVec
	attempts      prometheus.Counter
	backoff       prometheus.Histogram
	received      *prometheus.CounterVec
	published     prometheus.Counter
	panics        *prometheus.CounterVec
	lateResponses *prometheus.CounterVec
	outbox        prometheus.Gauge
}

// NewCollector 创建并注册所有指标
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "connection",
				Name:      "transitions_total",
				Help:      "Connection state transitions by target state.",
			},
			[]string{"state"},
		),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "attempts_total",
			Help:      "Connection attempts dispatched.",
		}),
		backoff: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "backoff_seconds",
			Help:      "Scheduled reconnect backoff delays.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		received: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "received_total",
				Help:      "Inbound messages, by whether they were duplicates.",
			},
			[]string{"duplicate"},
		),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "published_total",
			Help:      "Published messages dispatched to the server.",
		}),
		panics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "sink_panics_total",
				Help:      "Recovered panics in event sinks.",
			},
			[]string{"sink"},
		),
		lateResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "late_responses_dropped_total",
				Help:      "Responses dropped because their session was superseded.",
			},
			[]string{"kind"},
		),
		outbox: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "outbox_depth",
			Help:      "Requests queued for replay after the next connection.",
		}),
	}

	c.registry.MustRegister(
		c.transitions, c.attempts, c.backoff, c.received,
		c.published, c.panics, c.lateResponses, c.outbox,
	)
	return c
}

// Registry 返回私有 Registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ConnectionTransition 实现 Reporter
func (c *Collector) ConnectionTransition(to types.ConnectionState) {
	c.transitions.WithLabelValues(to.String()).Inc()
}

// ConnectAttempt 实现 Reporter
func (c *Collector) ConnectAttempt() {
	c.attempts.Inc()
}

// BackoffScheduled 实现 Reporter
func (c *Collector) BackoffScheduled(delay time.Duration) {
	c.backoff.Observe(delay.Seconds())
}

// MessageReceived 实现 Reporter
func (c *Collector) MessageReceived(duplicate bool) {
	if duplicate {
		c.received.WithLabelValues("true").Inc()
		return
	}
	c.received.WithLabelValues("false").Inc()
}

// MessagePublished 实现 Reporter
func (c *Collector) MessagePublished() {
	c.published.Inc()
}

// ObserverPanic 实现 Reporter
func (c *Collector) ObserverPanic(sink string) {
	c.panics.WithLabelValues(sink).Inc()
}

// LateResponseDropped 实现 Reporter
func (c *Collector) LateResponseDropped(kind string) {
	c.lateResponses.WithLabelValues(kind).Inc()
}

// OutboxDepth 实现 Reporter
func (c *Collector) OutboxDepth(n int) {
	c.outbox.Set(float64(n))
}

var _ Reporter = (*Collector)(nil)
