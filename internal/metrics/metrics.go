// Package metrics exposes internal Prometheus counters for the detection
// and submission pipeline (spec §7's "what a human needs"). These are
// process-internal instrumentation, not the out-of-scope hosted analytics
// dashboard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rawblock/triarb-engine/pkg/models"
)

// Metrics bundles every counter/gauge the pipeline updates.
type Metrics struct {
	Ticks            prometheus.Counter
	CandidatesFound  prometheus.Counter
	FilterRejections *prometheus.CounterVec
	SearchRejections *prometheus.CounterVec
	Submissions      *prometheus.CounterVec
	BreakerOpen      prometheus.Gauge
	QueueDepth       prometheus.Gauge
}

// New registers every metric against reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triarb_detector_ticks_total",
			Help: "Number of completed detection ticks.",
		}),
		CandidatesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triarb_candidates_found_total",
			Help: "Number of triangle candidates surviving the cheap rejects in search.",
		}),
		FilterRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triarb_filter_rejections_total",
			Help: "Price observations dropped by the filter, by reason.",
		}, []string{"reason"}),
		SearchRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triarb_governor_rejections_total",
			Help: "Candidates rejected by the safety governor, by reason.",
		}, []string{"reason"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triarb_submissions_total",
			Help: "Submission outcomes, by kind.",
		}, []string{"outcome"}),
		BreakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "triarb_breaker_open",
			Help: "1 if the circuit breaker is currently open, 0 otherwise.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "triarb_queue_depth",
			Help: "Current depth of the submission queue.",
		}),
	}

	reg.MustRegister(m.Ticks, m.CandidatesFound, m.FilterRejections, m.SearchRejections, m.Submissions, m.BreakerOpen, m.QueueDepth)
	return m
}

// RecordFilterCounts fans a filter.Counts-shaped map into the per-reason
// counter vector.
func (m *Metrics) RecordFilterCounts(counts map[models.RejectReason]int) {
	for reason, n := range counts {
		m.FilterRejections.WithLabelValues(string(reason)).Add(float64(n))
	}
}

// RecordGovernorRejection tallies one governor veto.
func (m *Metrics) RecordGovernorRejection(reason models.RejectReason) {
	m.SearchRejections.WithLabelValues(string(reason)).Inc()
}

// RecordOutcome tallies one submission outcome.
func (m *Metrics) RecordOutcome(kind models.OutcomeKind) {
	m.Submissions.WithLabelValues(outcomeLabel(kind)).Inc()
}

func outcomeLabel(kind models.OutcomeKind) string {
	switch kind {
	case models.OutcomeAccepted:
		return "accepted"
	case models.OutcomeRateLimited:
		return "rate_limited"
	case models.OutcomeRejected:
		return "rejected"
	case models.OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// SetBreakerOpen updates the breaker-state gauge.
func (m *Metrics) SetBreakerOpen(open bool) {
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}
