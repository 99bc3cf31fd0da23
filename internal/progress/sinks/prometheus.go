package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/boamp-console/internal/progress"
)

// PrometheusSink exports job lifecycle metrics.
type PrometheusSink struct {
	jobsSubmitted prometheus.Counter
	jobsRejected  prometheus.Counter
	jobsFinished  *prometheus.CounterVec
	jobsRunning   prometheus.Gauge
	jobRuntime    *prometheus.HistogramVec
	resultRows    prometheus.Histogram
	pollFailures  prometheus.Counter

	tracker *jobTracker
}

// NewPrometheusSink registers the collectors against reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boamp_console_jobs_submitted_total",
			Help: "Jobs accepted by the backend.",
		}),
		jobsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boamp_console_jobs_rejected_total",
			Help: "Submissions the backend refused or that never reached it.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boamp_console_jobs_finished_total",
			Help: "Jobs that reached a terminal state, by result.",
		}, []string{"result"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boamp_console_jobs_running",
			Help: "Jobs currently being polled.",
		}),
		jobRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "boamp_console_job_runtime_seconds",
			Help:    "Time from submission to terminal state.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"result"}),
		resultRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "boamp_console_job_result_rows",
			Help:    "Summary table size of completed jobs.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
		pollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boamp_console_poll_failures_total",
			Help: "Progress polls that failed and were retried.",
		}),
		tracker: newJobTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.jobsSubmitted,
		s.jobsRejected,
		s.jobsFinished,
		s.jobsRunning,
		s.jobRuntime,
		s.resultRows,
		s.pollFailures,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register job collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageSubmitted:
		s.jobsSubmitted.Inc()
		if s.tracker.start(evt.JobID) {
			s.jobsRunning.Inc()
		}
	case progress.StageRejected:
		s.jobsRejected.Inc()
	case progress.StagePollFailed:
		s.pollFailures.Inc()
	case progress.StageCompleted:
		s.finish(evt, "completed")
		s.resultRows.Observe(float64(evt.Rows))
	case progress.StageFailed:
		s.finish(evt, "failed")
	case progress.StageTimedOut:
		s.finish(evt, "timed_out")
	case progress.StageAbandoned:
		s.finish(evt, "abandoned")
	}
}

func (s *PrometheusSink) finish(evt progress.Event, result string) {
	s.jobsFinished.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.jobRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.JobID) {
		s.jobsRunning.Dec()
	}
}

// Close implements progress.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type jobTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newJobTracker() *jobTracker {
	return &jobTracker{running: make(map[string]struct{})}
}

func (t *jobTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *jobTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
