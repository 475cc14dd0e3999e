package stalk

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "stalk"
)

// statsExporter counts command outcomes and latency for one tube.
type statsExporter struct {
	commandsOK  *uint64
	commandsErr *uint64

	commandsOKDesc  *prometheus.Desc
	commandsErrDesc *prometheus.Desc

	commandCounter *prometheus.CounterVec
	commandLatency *prometheus.HistogramVec
}

// MetricsCollector exposes the tube's collectors for registration.
func (t *Tube) MetricsCollector() []prometheus.Collector {
	return []prometheus.Collector{t.metrics}
}

func newStatsExporter() *statsExporter {
	return &statsExporter{
		commandsOK:  toPtr(uint64(0)),
		commandsErr: toPtr(uint64(0)),

		commandsOKDesc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "commands_ok"), "Number of commands that completed successfully", nil, nil),
		commandsErrDesc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "commands_err"), "Number of commands that failed", nil, nil),

		commandCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "The total number of commands sent to the queue server",
		}, []string{"command", "outcome"}),

		commandLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: prometheus.BuildFQName(namespace, "", "command_latency"),
			Help: "Histogram represents latency of completed commands",
		}, []string{"command"}),
	}
}

func (se *statsExporter) countOK(cmd string, elapsed time.Duration) {
	atomic.AddUint64(se.commandsOK, 1)
	se.commandCounter.WithLabelValues(cmd, "ok").Inc()
	se.commandLatency.WithLabelValues(cmd).Observe(elapsed.Seconds())
}

func (se *statsExporter) countErr(cmd string) {
	atomic.AddUint64(se.commandsErr, 1)
	se.commandCounter.WithLabelValues(cmd, "err").Inc()
}

func (se *statsExporter) Describe(d chan<- *prometheus.Desc) {
	// send description
	d <- se.commandsOKDesc
	d <- se.commandsErrDesc

	se.commandCounter.Describe(d)
	se.commandLatency.Describe(d)
}

func (se *statsExporter) Collect(ch chan<- prometheus.Metric) {
	// send the values to the prometheus
	ch <- prometheus.MustNewConstMetric(se.commandsOKDesc, prometheus.GaugeValue, float64(atomic.LoadUint64(se.commandsOK)))
	ch <- prometheus.MustNewConstMetric(se.commandsErrDesc, prometheus.GaugeValue, float64(atomic.LoadUint64(se.commandsErr)))

	se.commandCounter.Collect(ch)
	se.commandLatency.Collect(ch)
}

func toPtr[T any](v T) *T {
	return &v
}
