// Package prometheus implements chatstream.Observer by counting pipeline
// events in Prometheus metrics.
package prometheus

import (
	"time"

	"github.com/fwojciec/chatstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ chatstream.Observer = (*Observer)(nil)

const namespace = "chatstream"

// Observer translates pipeline events into metrics.
type Observer struct {
	Events           *prometheus.CounterVec
	Exchanges        *prometheus.CounterVec
	StreamFailures   *prometheus.CounterVec
	OneShotFailures  *prometheus.CounterVec
	LocalReplies     *prometheus.CounterVec
	RenderFailures   prometheus.Counter
	SessionsCreated  prometheus.Counter
	Replies          *prometheus.CounterVec
	RequestDurations *prometheus.HistogramVec
}

// New creates an Observer and registers its metrics with reg.
func New(reg prometheus.Registerer) *Observer {
	f := promauto.With(reg)
	return &Observer{
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of observed pipeline events.",
		}, []string{"event"}),
		Exchanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "Total number of exchanges by terminal state.",
		}, []string{"state"}),
		StreamFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_failures_total",
			Help:      "Total number of streaming attempts that fell back, by failure kind.",
		}, []string{"kind"}),
		OneShotFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oneshot_failures_total",
			Help:      "Total number of failed one-shot requests, by error class.",
		}, []string{"class"}),
		LocalReplies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "local_replies_total",
			Help:      "Total number of locally produced replies, by rule.",
		}, []string{"rule"}),
		RenderFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_failures_total",
			Help:      "Total number of rich render failures.",
		}),
		SessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of sessions created implicitly before a send.",
		}),
		Replies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_replies_total",
			Help:      "Total number of replies generated by the server, by mode and outcome.",
		}, []string{"mode", "outcome"}),
		RequestDurations: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "route", "status"}),
	}
}

// Observe updates the metrics matching event.
func (o *Observer) Observe(_ chatstream.Level, event string, fields chatstream.Fields) {
	o.Events.WithLabelValues(event).Inc()
	switch event {
	case chatstream.EventExchangeCompleted, chatstream.EventExchangeFailed:
		o.Exchanges.WithLabelValues(str(fields, "state")).Inc()
	case chatstream.EventStreamFailed:
		o.StreamFailures.WithLabelValues(str(fields, "kind")).Inc()
	case chatstream.EventOneShotFailed:
		o.OneShotFailures.WithLabelValues(str(fields, "class")).Inc()
	case chatstream.EventFallbackLocal:
		o.LocalReplies.WithLabelValues(str(fields, "rule")).Inc()
	case chatstream.EventRenderFailed:
		o.RenderFailures.Inc()
	case chatstream.EventSessionCreated:
		o.SessionsCreated.Inc()
	case chatstream.EventReplyGenerated:
		o.Replies.WithLabelValues(str(fields, "mode"), "ok").Inc()
	case chatstream.EventReplyFailed:
		o.Replies.WithLabelValues(str(fields, "mode"), "error").Inc()
	case chatstream.EventHTTPRequest:
		d, _ := fields["duration"].(time.Duration)
		o.RequestDurations.WithLabelValues(str(fields, "method"), str(fields, "route"), str(fields, "status")).Observe(d.Seconds())
	}
}

func str(fields chatstream.Fields, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case nil:
		return "unknown"
	case interface{ String() string }:
		return v.String()
	default:
		return "unknown"
	}
}
