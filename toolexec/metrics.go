package toolexec

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics wraps the Prometheus counters/histogram that mirror the
// in-memory ring buffer's statistics for external scraping.
type metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics() *metrics {
	m := &metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reasonkit",
			Subsystem: "toolexec",
			Name:      "calls_total",
			Help:      "Total tool invocations by tool name and outcome.",
		}, []string{"tool", "success"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reasonkit",
			Subsystem: "toolexec",
			Name:      "call_duration_seconds",
			Help:      "Tool invocation latency by tool name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
	}

	// Registration failures (e.g. a second Executor in the same process
	// registering against the default registerer) are non-fatal: the
	// executor still functions, just without that instance's metrics
	// exported.
	_ = prometheus.Register(m.calls)
	_ = prometheus.Register(m.duration)

	return m
}

func (m *metrics) observe(tool string, success bool, elapsed time.Duration) {
	label := "true"
	if !success {
		label = "false"
	}
	m.calls.WithLabelValues(tool, label).Inc()
	m.duration.WithLabelValues(tool).Observe(elapsed.Seconds())
}
