// Package metrics exposes the scraper's Prometheus metrics over HTTP.
//
// Metrics are defined with promauto in the packages that record them and land
// in the default registry:
//
// Scrape backend (pkg/scrape):
//   - g2_scrape_requests_total{status} (Counter)
//   - g2_scrape_duration_seconds (Histogram)
//   - g2_scrape_errors_total{class} (Counter)
//   - g2_scrape_retries_total{error_class} (Counter)
//   - g2_scrape_retry_backoff_seconds{error_class} (Histogram)
//   - g2_scrape_retry_exhausted_total{error_class} (Counter)
//   - g2_scrape_in_flight (Gauge)
//
// Page cache (pkg/cache):
//   - g2_cache_hits_total, g2_cache_misses_total (Counter)
//   - g2_cache_stored_bytes (Counter)
//   - g2_cache_errors_total{operation} (Counter)
//
// API credits (pkg/ratelimit):
//   - g2_scrape_credits_remaining (Gauge)
//   - g2_scrape_credits_spent_total (Counter)
//   - g2_scrape_credit_blocks_total, g2_scrape_credit_throttles_total (Counter)
//
// Pipeline (pkg/pagination, pkg/sink):
//   - g2_pages_fetched_total{mode,outcome} (Counter)
//   - g2_records_extracted_total{kind} (Counter)
//   - g2_sink_items_total{sink,data_type} (Counter)
//
// Example queries:
//
//	# Page failure ratio
//	sum(rate(g2_pages_fetched_total{outcome="error"}[5m])) / sum(rate(g2_pages_fetched_total[5m]))
//
//	# Credits left
//	g2_scrape_credits_remaining < 1000
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Gatherer serves the metrics registered by promauto in the default registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves /metrics and /health.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", healthHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// Serve runs the metrics server on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("component", "metrics").Str("addr", addr).Msg("Starting metrics server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
