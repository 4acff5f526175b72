// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var requestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "couchdb",
		Subsystem: "client",
		Name:      "requests_total",
		Help:      "CouchDB requests dispatched, by outcome",
	},
	[]string{
		"method",
		"transport",
		"outcome",
	},
)

var requestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "couchdb",
		Subsystem: "client",
		Name:      "request_duration_seconds",
		Help:      "Time from dispatch to decoded CouchDB response",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{
		"method",
		"transport",
	},
)

// Collectors returns the client's Prometheus collectors.  They are not
// registered anywhere; a program that exports metrics should pass them
// to prometheus.MustRegister.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{requestsTotal, requestDuration}
}

// outcome labels a result for metrics: "ok", or the failure kind.
func outcome(r Result) string {
	if f := r.Failure(); f != nil {
		return f.Kind.String()
	}
	return "ok"
}

func observe(method, strategy string, r Result, elapsed time.Duration) {
	requestsTotal.WithLabelValues(method, strategy, outcome(r)).Inc()
	requestDuration.WithLabelValues(method, strategy).Observe(elapsed.Seconds())
}
