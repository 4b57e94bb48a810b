// Package runner executes one scraping run: collect pages and push every record
// to the sink as soon as its page is extracted, reporting status along the way.
package runner

import (
	"context"
	"fmt"

	"github.com/Sternrassler/g2-scraper/pkg/config"
	"github.com/Sternrassler/g2-scraper/pkg/extract"
	"github.com/Sternrassler/g2-scraper/pkg/logging"
	"github.com/Sternrassler/g2-scraper/pkg/pagination"
	"github.com/Sternrassler/g2-scraper/pkg/scrape"
	"github.com/Sternrassler/g2-scraper/pkg/sink"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Runner executes a configured run.
type Runner struct {
	cfg     config.Config
	fetcher pagination.Fetcher
	sink    sink.Sink
	status  StatusReporter
	runID   uuid.UUID
	logger  zerolog.Logger

	// pushed counts items written during the current Run. PageFuncs run on
	// the collecting goroutine, so no locking is needed.
	pushed int
	saving bool
}

// New creates a runner. cfg must have been validated.
func New(cfg config.Config, fetcher pagination.Fetcher, out sink.Sink, status StatusReporter) *Runner {
	runID := uuid.New()
	return &Runner{
		cfg:     cfg,
		fetcher: fetcher,
		sink:    out,
		status:  status,
		runID:   runID,
		logger:  logging.NewLogger("runner").With().Str("run_id", runID.String()).Logger(),
	}
}

// RunID identifies the run's items in the sink.
func (r *Runner) RunID() uuid.UUID {
	return r.runID
}

// Run collects the records and pushes each page's records as soon as they are
// extracted. It returns the number of items pushed, which is also meaningful
// when an error is returned.
func (r *Runner) Run(ctx context.Context) (int, error) {
	r.pushed = 0
	r.saving = false

	err := r.run(ctx)
	if err != nil {
		r.status.Fail(fmt.Sprintf("Scraping failed: %v", err), err)
		return r.pushed, err
	}
	r.status.Succeed(fmt.Sprintf("Completed! Scraped %d items", r.pushed))
	return r.pushed, nil
}

func (r *Runner) run(ctx context.Context) error {
	opts := scrape.BaseOptions()
	if !r.cfg.Cache {
		opts = opts.Merge(scrape.FreshOverride())
	}

	switch r.cfg.ScrapeType {
	case config.ScrapeReviews:
		r.status.Status(fmt.Sprintf("Scraping reviews (target: %d)...", r.cfg.NumberOfReviews))
		if err := r.collectReviews(ctx, opts); err != nil {
			return err
		}

	case config.ScrapeSearch:
		r.status.Status(fmt.Sprintf("Scraping search results (max %d pages)...", r.cfg.SearchMaxPages))
		if err := r.collectSearch(ctx, opts); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: %q", config.ErrInvalidScrapeType, r.cfg.ScrapeType)
	}
	if err := r.interrupted(ctx); err != nil {
		return err
	}

	if r.cfg.EnableSearch {
		if r.cfg.ScrapeType == config.ScrapeSearch {
			// the primary pass already pushed these pages
			r.logger.Info().Msg("Search already scraped, skipping additional search pass")
		} else {
			r.status.Status("Scraping additional search results...")
			if err := r.collectSearch(ctx, opts); err != nil {
				return err
			}
			if err := r.interrupted(ctx); err != nil {
				return err
			}
		}
	}

	r.logger.Info().Int("items", r.pushed).Msg("Pushed items to dataset")
	return nil
}

// interrupted reports a cancelled run. Records pushed so far stay in the sink.
func (r *Runner) interrupted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted after %d items: %w", r.pushed, err)
	}
	return nil
}

func (r *Runner) collectReviews(ctx context.Context, opts scrape.Options) error {
	p := pagination.NewReviews(r.fetcher, opts).
		OnPage(pushPage[extract.Review](r, sink.DataReviews)).
		OnRemaining(r.reportRemaining)

	r.logger.Info().Str("url", r.cfg.ProductURL).Msg("Starting review scraping")

	var (
		res *pagination.Result[extract.Review]
		err error
	)
	if r.cfg.MaxPages > 0 {
		res, err = p.CollectPages(ctx, r.cfg.ProductURL, r.cfg.MaxPages)
	} else {
		res, err = p.CollectUntil(ctx, r.cfg.ProductURL, r.cfg.NumberOfReviews)
	}
	if err != nil {
		return fmt.Errorf("scrape reviews: %w", err)
	}

	r.logger.Info().
		Int("reviews", len(res.Records)).
		Int("failed_pages", res.Failed()).
		Str("stop", string(res.Stop)).
		Msg("Scraped reviews")
	return nil
}

func (r *Runner) collectSearch(ctx context.Context, opts scrape.Options) error {
	target := r.cfg.SearchTarget()
	p := pagination.NewSearch(r.fetcher, opts).
		OnPage(pushPage[extract.Listing](r, sink.DataSearch)).
		OnRemaining(r.reportRemaining)

	r.logger.Info().Str("url", target).Msg("Starting search scraping")

	res, err := p.CollectPages(ctx, target, r.cfg.SearchMaxPages)
	if err != nil {
		return fmt.Errorf("scrape search: %w", err)
	}

	r.logger.Info().
		Int("listings", len(res.Records)).
		Int("failed_pages", res.Failed()).
		Msg("Scraped search results")
	return nil
}

func (r *Runner) reportRemaining(n int) {
	r.status.Status(fmt.Sprintf("Scraping %d remaining pages...", n))
}

// pushPage returns a PageFunc that sends every record of a page as its own
// item. Pushes ignore cancellation of ctx: records that were already
// collected are written even when the run is being interrupted.
func pushPage[T any](r *Runner, dataType string) pagination.PageFunc[T] {
	return func(ctx context.Context, outcome pagination.PageOutcome, records []T) error {
		if !r.saving {
			r.saving = true
			r.status.Status("Saving results to dataset...")
		}

		pushCtx := context.WithoutCancel(ctx)
		for _, rec := range records {
			if err := r.sink.Push(pushCtx, sink.Item{DataType: dataType, RunID: r.runID, Record: rec}); err != nil {
				return fmt.Errorf("push %s item: %w", dataType, err)
			}
			r.pushed++
		}

		r.logger.Debug().
			Int("page", outcome.Page).
			Int("items", len(records)).
			Int("pushed", r.pushed).
			Msg("Pushed page")
		return nil
	}
}
