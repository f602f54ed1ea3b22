package push

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	liveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tether_push_subscriptions",
		Help: "Live connection+session subscriptions.",
	})
	envelopesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_push_envelopes_delivered_total",
		Help: "Envelopes enqueued to subscriber send queues.",
	})
	envelopesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_push_envelopes_dropped_total",
		Help: "Envelopes dropped due to backpressure or shutdown.",
	})
	reliableSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_push_reliable_sent_total",
		Help: "Reliable envelopes sent (initial attempts).",
	})
	reliableRetried = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_push_reliable_retried_total",
		Help: "Reliable envelope re-sends.",
	})
	reliableFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_push_reliable_failed_total",
		Help: "Reliable envelopes that exhausted the retry budget.",
	})
)
