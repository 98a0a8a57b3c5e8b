// Package services – Prometheus instrumentation for the engine itself
// (rating updates, ledger writes, badge awards). HTTP-level metrics live in
// the middleware package; these counters track business events regardless
// of transport.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// ratingUpdates counts persisted VibeLevelChange rows by reason.
	ratingUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rating_updates_total",
			Help: "Total number of persisted rating updates.",
		},
		[]string{"reason"},
	)

	// pointsEvents counts fresh ledger inserts by source type. Idempotent
	// replays do not increment.
	pointsEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "points_events_total",
			Help: "Total number of points ledger events recorded.",
		},
		[]string{"source_type"},
	)

	// badgeAwards counts fresh badge unlocks.
	badgeAwards = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "badge_awards_total",
			Help: "Total number of badges awarded.",
		},
	)
)

func init() {
	prometheus.MustRegister(ratingUpdates, pointsEvents, badgeAwards)
}
