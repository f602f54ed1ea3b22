package pairing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_pairing_sessions_created_total",
		Help: "Pairing sessions created.",
	})
	sessionsPaired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_pairing_sessions_paired_total",
		Help: "Pairing sessions that reached the paired state.",
	})
	sessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_pairing_sessions_expired_total",
		Help: "Pairing sessions retired by the expiry sweeper.",
	})
	requestsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_pairing_requests_created_total",
		Help: "Signing requests created.",
	})
	requestsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tether_pairing_requests_resolved_total",
		Help: "Signing requests that reached a terminal state.",
	}, []string{"status"})
)
