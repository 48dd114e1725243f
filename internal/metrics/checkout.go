package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records payment and commit outcomes. A nil *CheckoutMetrics
// is valid and records nothing.
type CheckoutMetrics struct {
	commits        *prometheus.CounterVec
	lineFailures   *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	rejectedSubmit prometheus.Counter
	shortages      *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brewpos_commits_total",
		Help: "Transaction commits by payment method and outcome.",
	}, []string{"method", "outcome"})
	lineFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brewpos_deduction_line_failures_total",
		Help: "Cart lines whose inventory deduction failed after the sale was saved.",
	}, []string{"product"})
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "brewpos_payment_stage_duration_seconds",
		Help:    "Duration of payment processing stages.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "stage"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brewpos_confirm_rejected_total",
		Help: "ConfirmPayment calls rejected because another one was in flight.",
	})
	shortages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brewpos_stock_issues_total",
		Help: "Stock validation issues by kind.",
	}, []string{"kind"})
	reg.MustRegister(commits, lineFailures, stageDuration, rejected, shortages)
	return &CheckoutMetrics{
		commits:        commits,
		lineFailures:   lineFailures,
		stageDuration:  stageDuration,
		rejectedSubmit: rejected,
		shortages:      shortages,
	}
}

func (m *CheckoutMetrics) IncCommit(method, outcome string) {
	if m == nil || m.commits == nil {
		return
	}
	m.commits.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}

func (m *CheckoutMetrics) IncLineFailure(product string) {
	if m == nil || m.lineFailures == nil {
		return
	}
	m.lineFailures.WithLabelValues(normalizeLabel(product)).Inc()
}

func (m *CheckoutMetrics) ObserveStage(method, stage string, d time.Duration) {
	if m == nil || m.stageDuration == nil {
		return
	}
	m.stageDuration.WithLabelValues(normalizeLabel(method), normalizeLabel(stage)).Observe(d.Seconds())
}

func (m *CheckoutMetrics) IncRejectedSubmit() {
	if m == nil || m.rejectedSubmit == nil {
		return
	}
	m.rejectedSubmit.Inc()
}

func (m *CheckoutMetrics) IncStockIssue(kind string) {
	if m == nil || m.shortages == nil {
		return
	}
	m.shortages.WithLabelValues(normalizeLabel(kind)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
