package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "classifyq"

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of classification runs, labeled by terminal state.",
		},
		[]string{"state"},
	)

	StepLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_latency_seconds",
			Help:      "Latency of each workflow step (store, infer), labeled by outcome.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"step", "outcome"},
	)

	InferenceLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_latency_seconds",
			Help:      "Processing time recorded on completed results (seconds).",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	SideEffectFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "Total number of failed best-effort side effects (persist, notify).",
		},
		[]string{"kind"},
	)

	ObserverPanicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observer_panics_total",
			Help:      "Total number of recovered panics raised by progress observers.",
		},
	)

	HistoryAppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_appends_total",
			Help:      "Total number of history appends, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Total number of webhook deliveries, labeled by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		SubmissionsTotal,
		StepLatencySeconds,
		InferenceLatencySeconds,
		SideEffectFailuresTotal,
		ObserverPanicsTotal,
		HistoryAppendsTotal,
		WebhookDeliveriesTotal,
	)
}
