// Package jobmetrics instruments background job runs.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Metrics holds the worker collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	events   *prometheus.CounterVec
	purged   prometheus.Counter
}

var (
	globalOnce sync.Once
	global     *Metrics
)

// NewMetrics registers the collectors on reg, or once on the default
// registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg != nil {
		return register(reg)
	}
	globalOnce.Do(func() { global = register(prometheus.DefaultRegisterer) })
	return global
}

func register(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sections_jobs_total",
			Help: "Job executions by task type and status.",
		}, []string{"job", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sections_job_duration_seconds",
			Help:    "Job execution time by task type.",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 30, 120},
		}, []string{"job"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sections_auth_events_recorded_total",
			Help: "Auth events written to the audit trail by kind.",
		}, []string{"kind"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sections_auth_events_purged_total",
			Help: "Auth events deleted by the retention job.",
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.events, m.purged)
	return m
}

// Run measures one execution of job.
type Run struct {
	m       *Metrics
	job     string
	started time.Time
}

// Track starts measuring an execution of job.
func (m *Metrics) Track(job string) *Run {
	return &Run{m: m, job: job, started: time.Now()}
}

// End records the outcome of the run and passes err through.
func (r *Run) End(err error) error {
	if r == nil || r.m == nil {
		return err
	}
	status := statusSuccess
	if err != nil {
		status = statusFailure
	}
	r.m.runs.WithLabelValues(r.job, status).Inc()
	r.m.duration.WithLabelValues(r.job).Observe(time.Since(r.started).Seconds())
	return err
}

// AddEvent counts one persisted auth event.
func (m *Metrics) AddEvent(kind string) {
	if m != nil && kind != "" {
		m.events.WithLabelValues(kind).Inc()
	}
}

// AddPurged counts auth events removed by retention.
func (m *Metrics) AddPurged(n int64) {
	if m != nil && n > 0 {
		m.purged.Add(float64(n))
	}
}
