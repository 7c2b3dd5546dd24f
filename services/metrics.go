package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	daysCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "earlywake_days_created_total",
		Help: "Days recorded, by source (self, admin, backfill).",
	}, []string{"source"})

	pointsAwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "earlywake_points_awarded_total",
		Help: "Points granted to users through day check-ins and photo proofs.",
	})

	backfillRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "earlywake_backfill_runs_total",
		Help: "Backfill runs, by outcome.",
	}, []string{"outcome"})
)
