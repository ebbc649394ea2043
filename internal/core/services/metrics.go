// internal/core/services/metrics.go
package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache effectiveness counters, exported on /metrics. The "kind" label
// separates single-record lookups from list queries.
var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_api_cache_hits_total",
		Help: "Number of reads served from the cache",
	}, []string{"kind"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_api_cache_misses_total",
		Help: "Number of reads that fell through to the record store",
	}, []string{"kind"})

	cacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_api_cache_invalidations_total",
		Help: "Number of write-triggered cache invalidations",
	})
)
