// Package metrics exposes the broker's Prometheus collectors. It is
// deliberately thin: callers own the registry and the HTTP endpoint
// that serves it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector the broker updates from its hot paths.
// Constructing one registers all of its collectors with reg.
type Metrics struct {
	ConnectionsActive prometheus.Gauge
	PublishesTotal    *prometheus.CounterVec
	SubscribesTotal   prometheus.Counter
	ParseErrorsTotal  prometheus.Counter
	TreeWriteDuration prometheus.Histogram
}

// New creates and registers the broker's collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "embermq",
			Name:      "connections_active",
			Help:      "Number of currently connected clients.",
		}),
		PublishesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "embermq",
			Name:      "publishes_total",
			Help:      "PUBLISH packets processed, labeled by QoS.",
		}, []string{"qos"}),
		SubscribesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "embermq",
			Name:      "subscribes_total",
			Help:      "SUBSCRIBE packets processed.",
		}),
		ParseErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "embermq",
			Name:      "parse_errors_total",
			Help:      "Fatal wire-format errors that closed a connection.",
		}),
		TreeWriteDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "embermq",
			Name:      "tree_write_seconds",
			Help:      "Time spent under the subscription tree's writer lock per mutation.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
