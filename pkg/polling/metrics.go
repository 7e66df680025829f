package polling

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/flagged-dev/flagged/pkg/lookup"
)

var (
	lookupsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagged",
			Subsystem: "queue",
			Name:      "lookups_total",
			Help:      "Finished lookups by outcome.",
		},
		[]string{"outcome"}, // ok, rate_limited, status, malformed, error
	)

	pendingGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "flagged",
			Subsystem: "queue",
			Name:      "pending",
			Help:      "Handles waiting for a lookup.",
		},
	)
)

func outcome(err error) string {
	var se *lookup.StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, lookup.ErrRateLimited):
		return "rate_limited"
	case errors.As(err, &se):
		return "status"
	case errors.Is(err, lookup.ErrMalformed):
		return "malformed"
	default:
		return "error"
	}
}
