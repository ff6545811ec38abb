// Package metrics exposes the engine's Prometheus instrumentation, served on
// /metrics by the API binary.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OffersCreated counts offers written to the ledger, by escalation level.
	OffersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_offers_created_total",
		Help: "Offers created, labeled by escalation level.",
	}, []string{"level"})

	// OfferResponses counts terminal offer responses.
	OfferResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_offer_responses_total",
		Help: "Offer responses recorded, labeled by response.",
	}, []string{"response"})

	// Escalations counts escalation-level advances.
	Escalations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_escalations_total",
		Help: "Escalation level advances, labeled by the level reached.",
	}, []string{"to_level"})

	// SweepProcessed counts tasks handled by the expiry sweep.
	SweepProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assignment_sweep_processed_total",
		Help: "Tasks processed by the offer expiry sweep.",
	})

	// RankDuration observes candidate-ranking latency.
	RankDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assignment_rank_duration_seconds",
		Help:    "Time spent ranking candidates for one task.",
		Buckets: prometheus.DefBuckets,
	})
)

// Level formats an escalation level for use as a metric label.
func Level(level int) string {
	return strconv.Itoa(level)
}
