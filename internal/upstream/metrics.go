package upstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts upstream HTTP calls by source and outcome
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identigraph_upstream_requests_total",
		Help: "Total upstream requests by source and outcome",
	}, []string{"source", "outcome"})

	// requestDuration tracks upstream call latency
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "identigraph_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
	}, []string{"source"})

	// factsWritten counts facts persisted by source and edge type
	factsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identigraph_upstream_facts_written_total",
		Help: "Total facts persisted by source and edge type",
	}, []string{"source", "edge"})
)
