package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the runner's Prometheus collectors.
type Metrics struct {
	runs      *prometheus.CounterVec
	processed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "academyd",
			Subsystem: "job",
			Name:      "runs_total",
			Help:      "Job runs by outcome and skip reason.",
		}, []string{"job", "outcome", "reason"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "academyd",
			Subsystem: "job",
			Name:      "processed_total",
			Help:      "Items processed by non-dry-run job runs.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "academyd",
			Subsystem: "job",
			Name:      "run_duration_seconds",
			Help:      "Wall time of job runs that reached the service.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"job"}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.processed, m.duration)
	}
	return m
}

func (m *Metrics) observe(r Result, elapsed time.Duration) {
	if m == nil {
		return
	}
	job := string(r.Job)
	m.runs.WithLabelValues(job, string(r.Outcome), string(r.Reason)).Inc()
	if r.Outcome == OutcomeOK && r.Processed > 0 {
		m.processed.WithLabelValues(job).Add(float64(r.Processed))
	}
	if elapsed > 0 {
		m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
	}
}
