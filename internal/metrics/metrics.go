// Package metrics registers the Prometheus instruments for the
// unify/segment pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "unify"

// Metrics holds every instrument the service records. One instance is
// created in main and shared by the pipeline, the workers, and the API.
type Metrics struct {
	EventsIngested   prometheus.Counter
	ProfilesCreated  prometheus.Counter
	PurchasesApplied prometheus.Counter
	ConflictRetries  prometheus.Counter

	AudienceRebuilds  *prometheus.CounterVec
	RebuildDuration   prometheus.Histogram
	RebuildQueueDepth prometheus.Gauge
}

// New registers all instruments against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ingested_total",
			Help:      "Events appended to the event log.",
		}),
		ProfilesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profiles_created_total",
			Help:      "Profiles created by identity resolution.",
		}),
		PurchasesApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_applied_total",
			Help:      "Purchase events credited to profile aggregates.",
		}),
		ConflictRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_conflict_retries_total",
			Help:      "Identify/track transactions re-run after a uniqueness conflict.",
		}),
		AudienceRebuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audience_rebuilds_total",
			Help:      "Audience rebuilds by outcome.",
		}, []string{"status"}),
		RebuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audience_rebuild_duration_seconds",
			Help:      "Wall time of audience membership rebuilds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		RebuildQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rebuild_queue_depth",
			Help:      "Jobs waiting in the audience rebuild queue.",
		}),
	}
}
