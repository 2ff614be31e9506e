package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	ClassificationRequests prometheus.Counter
	ClassificationFailures *prometheus.CounterVec
	ClassificationLabels   *prometheus.CounterVec
	MessagesProcessed      *prometheus.CounterVec
	BatchDuration          prometheus.Histogram
	HistorySize            prometheus.Gauge
	SchedulerRuns          prometheus.Counter
}

// NewMetrics creates new Prometheus metrics registered on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ClassificationRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "autosort_classification_requests_total",
			Help: "Total number of requests sent to the classification endpoint",
		}),
		ClassificationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "autosort_classification_failures_total",
			Help: "Total number of failed classifications by kind",
		}, []string{"kind"}),
		ClassificationLabels: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "autosort_classification_labels_total",
			Help: "Total number of classifier replies by whether the label was accepted",
		}, []string{"result"}),
		MessagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "autosort_messages_processed_total",
			Help: "Total number of messages processed by batch mode and status",
		}, []string{"mode", "status"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "autosort_batch_duration_seconds",
			Help:    "Time spent applying a label to a batch of messages",
			Buckets: prometheus.DefBuckets,
		}),
		HistorySize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "autosort_history_size",
			Help: "Number of entries currently held in the move history",
		}),
		SchedulerRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "autosort_scheduler_runs_total",
			Help: "Total number of scheduled auto-sort cycles",
		}),
	}
}

// NewNop returns metrics registered on a private registry
func NewNop() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
