package scrape

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for scrape operations.
var (
	scrapeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "g2_scrape_requests_total",
		Help: "Total scrape requests by outcome",
	}, []string{"status"})

	scrapeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "g2_scrape_duration_seconds",
		Help:    "Scrape request duration in seconds, including backend rendering",
		Buckets: []float64{1, 2, 5, 10, 20, 40, 80, 160},
	})

	scrapeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "g2_scrape_errors_total",
		Help: "Total scrape errors by class",
	}, []string{"class"})

	scrapeRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "g2_scrape_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	scrapeRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "g2_scrape_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	scrapeRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "g2_scrape_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})

	scrapeInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "g2_scrape_in_flight",
		Help: "Scrapes currently running in concurrent batches",
	})
)
