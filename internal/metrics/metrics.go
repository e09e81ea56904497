package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Check-in outcomes used as the "outcome" label.
const (
	OutcomeRegistered = "registered"
	OutcomeDuplicate  = "duplicate"
	OutcomeNotFound   = "not_found"
	OutcomeUnsaved    = "unsaved"
)

var (
	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_registrations_total",
		Help: "Check-in attempts by outcome.",
	}, []string{"outcome"})

	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_store_errors_total",
		Help: "Failed document store calls.",
	}, []string{"collection", "op"})

	QueueMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_queue_messages_total",
		Help: "Bookkeeping messages handled by the queue consumer.",
	}, []string{"collection", "result"})

	RosterGuests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkin_roster_guests",
		Help: "Guests in the currently loaded roster.",
	})

	RegisteredGuests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkin_registered_guests",
		Help: "Guests checked in during this session.",
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkin_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	})
)
