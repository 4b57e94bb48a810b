package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks page cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "g2_cache_hits_total",
			Help: "Total number of rendered page cache hits",
		},
	)

	// CacheMisses tracks cache misses, expired entries included
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "g2_cache_misses_total",
			Help: "Total number of rendered page cache misses",
		},
	)

	// CacheStoredBytes tracks bytes written to the cache
	CacheStoredBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "g2_cache_stored_bytes",
			Help: "Total bytes of rendered pages written to the cache",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "g2_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
