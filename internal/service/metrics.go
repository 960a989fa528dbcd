package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	crawlsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identigraph_crawls_total",
		Help: "Total finished crawls by stop reason",
	}, []string{"stop_reason"})

	crawlTargetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identigraph_crawl_targets_total",
		Help: "Total dispatched targets by final state",
	}, []string{"state"})

	crawlRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "identigraph_crawl_rounds",
		Help:    "Rounds run per crawl",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	})

	crawlDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "identigraph_crawl_duration_seconds",
		Help:    "Crawl wall time in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
