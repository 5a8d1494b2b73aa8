// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OutcomeOK labels a successful operation; failures use their error code
const OutcomeOK = "ok"

var (
	// transitionsTotal counts session state changes.
	// Labels: transition (start, end, edit), outcome
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "connected_mate",
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Session transitions by outcome",
	}, []string{"transition", "outcome"})

	// joinsTotal counts join attempts.
	// Labels: outcome (ok, capacity_exceeded, session_not_joinable, ...)
	joinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "connected_mate",
		Subsystem: "registry",
		Name:      "joins_total",
		Help:      "Join attempts by outcome",
	}, []string{"outcome"})

	// votesTotal counts casts and retractions.
	// Labels: action (cast, retract), outcome
	votesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "connected_mate",
		Subsystem: "tally",
		Name:      "votes_total",
		Help:      "Vote casts and retractions by outcome",
	}, []string{"action", "outcome"})

	// requestDuration measures HTTP handling time.
	// Labels: method, route (the mux pattern), status
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "connected_mate",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "route", "status"})

	// eventSubscribers tracks open websocket subscriptions
	eventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "connected_mate",
		Subsystem: "events",
		Name:      "subscribers",
		Help:      "Open realtime event subscriptions",
	})

	// rateLimited counts requests refused by the per-client limiter
	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "connected_mate",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests refused by the rate limiter",
	})
)

// RecordTransition records a start, end or edit attempt
func RecordTransition(transition, outcome string) {
	transitionsTotal.WithLabelValues(transition, outcome).Inc()
}

// RecordJoin records a join attempt
func RecordJoin(outcome string) {
	joinsTotal.WithLabelValues(outcome).Inc()
}

// RecordVote records a cast or retract attempt
func RecordVote(action, outcome string) {
	votesTotal.WithLabelValues(action, outcome).Inc()
}

// RecordRequest records one handled HTTP request
func RecordRequest(method, route string, status int, elapsed time.Duration) {
	requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// SubscriberOpened and SubscriberClosed bracket a websocket subscription
func SubscriberOpened() { eventSubscribers.Inc() }
func SubscriberClosed() { eventSubscribers.Dec() }

// RecordRateLimited records a refused request
func RecordRateLimited() {
	rateLimited.Inc()
}

// Handler serves the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}
