package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nemanja-m/mrstep/internal/step/core"
)

// Metrics groups the collectors updated by MapReduce executables. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	pollTicks   prometheus.Counter
	transitions *prometheus.CounterVec
	results     *prometheus.CounterVec
	waitTime    prometheus.Histogram
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		pollTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mrstep",
			Subsystem: "executor",
			Name:      "poll_ticks_total",
			Help:      "Number of backend status samples taken.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mrstep",
			Subsystem: "executor",
			Name:      "status_transitions_total",
			Help:      "Number of observed job status changes, by new status.",
		}, []string{"status"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mrstep",
			Subsystem: "executor",
			Name:      "results_total",
			Help:      "Number of finished DoWork calls, by result state.",
		}, []string{"state"}),
		waitTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mrstep",
			Subsystem: "executor",
			Name:      "wait_time_seconds",
			Help:      "Time jobs spent waiting before the backend started them.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	if registry != nil {
		registry.MustRegister(m.pollTicks, m.transitions, m.results, m.waitTime)
	}
	return m
}

func (m *Metrics) observeTick() {
	if m != nil {
		m.pollTicks.Inc()
	}
}

func (m *Metrics) observeTransition(status core.JobStatus) {
	if m != nil {
		m.transitions.WithLabelValues(string(status)).Inc()
	}
}

func (m *Metrics) observeResult(state core.ResultState) {
	if m != nil {
		m.results.WithLabelValues(string(state)).Inc()
	}
}

func (m *Metrics) observeWaitTime(seconds float64) {
	if m != nil {
		m.waitTime.Observe(seconds)
	}
}
