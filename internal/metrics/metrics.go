// Package metrics exposes the service's prometheus instruments on the
// default registry scraped at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsIssued counts minted attendance sessions.
	SessionsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sessions_issued_total",
		Help: "Number of attendance sessions issued.",
	})

	// Redemptions counts redemption attempts by outcome: ok, invalid_token,
	// expired, forbidden, already_redeemed, error.
	Redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_redemptions_total",
		Help: "Number of redemption attempts by outcome.",
	}, []string{"outcome"})
)
