package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pagesFetched counts pages by collection mode and outcome (ok, empty, error).
	pagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "g2_pages_fetched_total",
			Help: "Total G2 pages fetched by collection mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	// recordsExtracted counts records kept by record kind.
	recordsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "g2_records_extracted_total",
			Help: "Total records extracted from G2 pages by kind",
		},
		[]string{"kind"},
	)
)

const (
	modePages  = "pages"
	modeTarget = "target"

	outcomeOK    = "ok"
	outcomeEmpty = "empty"
	outcomeError = "error"
)
