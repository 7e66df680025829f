package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookupsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagged",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by where the entry was found.",
		},
		[]string{"source"}, // memory, store, miss
	)

	storeErrorsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagged",
			Subsystem: "cache",
			Name:      "store_errors_total",
			Help:      "Persistent store operations that failed and were ignored.",
		},
		[]string{"op"},
	)
)
