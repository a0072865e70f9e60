package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "formvault"

// Metrics groups the pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	submissions    *prometheus.CounterVec
	webhookTries   *prometheus.CounterVec
	deliveryTime   *prometheus.HistogramVec
	statusFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. When reg is
// nil the default registerer is used.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_processed_total",
			Help:      "Submissions handled by the pipeline, partitioned by outcome.",
		}, []string{"outcome"}),
		webhookTries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_attempts_total",
			Help:      "Individual webhook POST attempts, partitioned by result.",
		}, []string{"result"}),
		deliveryTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_delivery_duration_seconds",
			Help:      "Wall time spent delivering a submission including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"delivered"}),
		statusFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_update_failures_total",
			Help:      "Status transitions that could not be persisted.",
		}),
	}
	reg.MustRegister(m.submissions, m.webhookTries, m.deliveryTime, m.statusFailures)
	return m
}

// SubmissionProcessed counts a finished pipeline run.
func (m *Metrics) SubmissionProcessed(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

// WebhookAttempt counts one POST attempt.
func (m *Metrics) WebhookAttempt(result string) {
	if m == nil {
		return
	}
	m.webhookTries.WithLabelValues(result).Inc()
}

// DeliveryFinished observes the total time a delivery took.
func (m *Metrics) DeliveryFinished(delivered bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "false"
	if delivered {
		label = "true"
	}
	m.deliveryTime.WithLabelValues(label).Observe(elapsed.Seconds())
}

// StatusUpdateFailed counts a status change that failed to persist.
func (m *Metrics) StatusUpdateFailed() {
	if m == nil {
		return
	}
	m.statusFailures.Inc()
}

// RegisterMetricsEndpoint exposes Prometheus metrics on /metrics. A nil
// gatherer serves the default registry.
func RegisterMetricsEndpoint(router chi.Router, gatherer prometheus.Gatherer) {
	var handler http.Handler
	if gatherer == nil {
		handler = promhttp.Handler()
	} else {
		handler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	router.Method(http.MethodGet, "/metrics", handler)
}
