package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Sternrassler/g2-scraper/pkg/extract"
	"github.com/Sternrassler/g2-scraper/pkg/scrape"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrInvalidURL is returned when the start URL is not an absolute http(s) URL.
var ErrInvalidURL = errors.New("invalid start url")

// Fetcher renders pages. *scrape.Client implements it.
type Fetcher interface {
	Scrape(ctx context.Context, pageURL string, opts scrape.Options) (*scrape.Document, error)
	ConcurrentScrape(ctx context.Context, reqs []scrape.Request) <-chan scrape.Result
}

// ExtractFunc turns one rendered page into records.
type ExtractFunc[T any] func(doc *scrape.Document) extract.PageResult[T]

// PageFunc receives the records of each page as soon as they are extracted,
// in the same order they are appended to Result.Records. A returned error
// aborts the collection and is returned by it.
type PageFunc[T any] func(ctx context.Context, outcome PageOutcome, records []T) error

// StopReason tells why a collection ended.
type StopReason string

const (
	// StopPageCap: every page up to the cap was requested.
	StopPageCap StopReason = "page_cap"
	// StopTarget: enough records were collected.
	StopTarget StopReason = "target_reached"
	// StopEmptyPage: a page yielded no records.
	StopEmptyPage StopReason = "empty_page"
	// StopError: a fetch failed; the records so far are kept.
	StopError StopReason = "error"
)

// PageOutcome is the result of fetching and extracting a single page.
type PageOutcome struct {
	// Index is the order in which the page was requested, starting at 0 for
	// the first page. Batch results are correlated by Index, never by URL.
	Index   int
	Page    int
	URL     string
	Records int
	Err     error
}

// Result is the outcome of one collection.
type Result[T any] struct {
	Records []T
	// TotalPages as read from the first page.
	TotalPages int
	// Outcomes in the order the pages completed.
	Outcomes []PageOutcome
	Stop     StopReason
}

// Failed returns the number of pages that could not be fetched.
func (r *Result[T]) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Pipeline collects records of one kind across pages.
type Pipeline[T any] struct {
	fetcher Fetcher
	extract ExtractFunc[T]
	opts    scrape.Options
	kind    string
	logger  zerolog.Logger

	onPage      PageFunc[T]
	onRemaining func(remaining int)
}

// New creates a pipeline. kind labels logs and metrics. opts is copied; later
// changes by the caller do not affect the pipeline.
func New[T any](fetcher Fetcher, fn ExtractFunc[T], opts scrape.Options, kind string) *Pipeline[T] {
	return &Pipeline[T]{
		fetcher: fetcher,
		extract: fn,
		opts:    opts,
		kind:    kind,
		logger:  log.With().Str("component", "pagination").Str("kind", kind).Logger(),
	}
}

// NewSearch creates a pipeline over search result pages.
func NewSearch(fetcher Fetcher, opts scrape.Options) *Pipeline[extract.Listing] {
	return New(fetcher, extract.Listings, opts, "search")
}

// NewReviews creates a pipeline over product review pages. The review render
// options are merged into opts.
func NewReviews(fetcher Fetcher, opts scrape.Options) *Pipeline[extract.Review] {
	return New(fetcher, extract.Reviews, opts.Merge(scrape.ReviewOverride()), "reviews")
}

// OnPage registers fn to be called for every page that yields records.
func (p *Pipeline[T]) OnPage(fn PageFunc[T]) *Pipeline[T] {
	p.onPage = fn
	return p
}

// OnRemaining registers fn to be called with the number of pages left once
// the first page has been read and a batch is about to start.
func (p *Pipeline[T]) OnRemaining(fn func(remaining int)) *Pipeline[T] {
	p.onRemaining = fn
	return p
}

// Options returns the render options used for every page.
func (p *Pipeline[T]) Options() scrape.Options {
	return p.opts
}

// CollectPages fetches the first page, then pages 2..cap concurrently, where
// cap is the total page count limited by maxPages when maxPages > 0.
//
// A failed first page is returned as an error. Later failures are recorded in
// Result.Outcomes and their records are dropped.
func (p *Pipeline[T]) CollectPages(ctx context.Context, pageURL string, maxPages int) (*Result[T], error) {
	if err := validateURL(pageURL); err != nil {
		return nil, err
	}
	start := time.Now()

	p.logger.Info().Str("url", pageURL).Msg("Scraping first page")

	doc, err := p.fetcher.Scrape(ctx, pageURL, p.opts)
	if err != nil {
		pagesFetched.WithLabelValues(modePages, outcomeError).Inc()
		return nil, fmt.Errorf("first page %s: %w", pageURL, err)
	}
	first := p.extract(doc)
	p.observe(modePages, len(first.Records))

	res := &Result[T]{
		Records:    first.Records,
		TotalPages: first.TotalPages,
		Outcomes:   []PageOutcome{{Index: 0, Page: 1, URL: pageURL, Records: len(first.Records)}},
		Stop:       StopPageCap,
	}
	if err := p.deliver(ctx, res.Outcomes[0], first.Records); err != nil {
		return res, err
	}

	last := first.TotalPages
	if maxPages > 0 && maxPages < last {
		last = maxPages
	}

	if last > 1 {
		reqs := make([]scrape.Request, 0, last-1)
		for page := 2; page <= last; page++ {
			u, err := WithPage(pageURL, page)
			if err != nil {
				return nil, err
			}
			reqs = append(reqs, scrape.Request{URL: u, Options: p.opts})
		}

		p.logger.Info().
			Int("total_pages", first.TotalPages).
			Int("remaining", len(reqs)).
			Msg("Scraping pagination")
		if p.onRemaining != nil {
			p.onRemaining(len(reqs))
		}

		batchCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		for r := range p.fetcher.ConcurrentScrape(batchCtx, reqs) {
			outcome := PageOutcome{Index: r.Index + 1, Page: r.Index + 2, URL: r.URL}
			if r.Err != nil {
				outcome.Err = r.Err
				pagesFetched.WithLabelValues(modePages, outcomeError).Inc()
				p.logger.Error().Err(r.Err).Int("page", outcome.Page).Msg("Page failed, skipping")
				res.Outcomes = append(res.Outcomes, outcome)
				continue
			}

			page := p.extract(r.Document)
			p.observe(modePages, len(page.Records))
			outcome.Records = len(page.Records)
			res.Records = append(res.Records, page.Records...)
			res.Outcomes = append(res.Outcomes, outcome)
			if err := p.deliver(ctx, outcome, page.Records); err != nil {
				// remaining workers see the cancelled context and finish quickly
				cancel()
				return res, err
			}
		}
	}

	recordsExtracted.WithLabelValues(p.kind).Add(float64(len(res.Records)))

	p.logger.Info().
		Str("url", pageURL).
		Int("records", len(res.Records)).
		Int("pages", len(res.Outcomes)).
		Int("failed", res.Failed()).
		Dur("duration", time.Since(start)).
		Msg("Collection complete")

	return res, nil
}

// CollectUntil fetches pages one at a time until target records are
// collected, a page has no records, or a fetch fails. Every fetch bypasses the
// caches so consecutive pages cannot repeat. The result is trimmed to target.
//
// Fetch failures end the collection with StopError and are not returned as
// errors: the records gathered so far are the result.
func (p *Pipeline[T]) CollectUntil(ctx context.Context, pageURL string, target int) (*Result[T], error) {
	if err := validateURL(pageURL); err != nil {
		return nil, err
	}
	start := time.Now()
	opts := p.opts.Merge(scrape.FreshOverride())

	res := &Result[T]{Records: make([]T, 0), Stop: StopTarget}

	for page := 1; len(res.Records) < target; page++ {
		outcome := PageOutcome{Index: page - 1, Page: page, URL: pageURL}

		p.logger.Info().
			Int("page", page).
			Int("collected", len(res.Records)).
			Int("target", target).
			Msg("Scraping page")

		pr, err := p.fetchPage(ctx, &outcome, opts)
		if err != nil {
			outcome.Err = err
			res.Outcomes = append(res.Outcomes, outcome)
			res.Stop = StopError
			pagesFetched.WithLabelValues(modeTarget, outcomeError).Inc()
			p.logger.Error().Err(err).Int("page", page).Msg("Page failed, stopping")
			break
		}
		if page == 1 {
			res.TotalPages = pr.TotalPages
		}
		p.observe(modeTarget, len(pr.Records))
		outcome.Records = len(pr.Records)
		res.Outcomes = append(res.Outcomes, outcome)

		if len(pr.Records) == 0 {
			res.Stop = StopEmptyPage
			p.logger.Warn().Int("page", page).Msg("No more records, stopping")
			break
		}

		// Only the records up to target are kept, so the handler never sees
		// records that the result drops.
		keep := pr.Records
		if room := target - len(res.Records); len(keep) > room {
			keep = keep[:room]
		}
		res.Records = append(res.Records, keep...)
		if err := p.deliver(ctx, outcome, keep); err != nil {
			return res, err
		}
	}

	recordsExtracted.WithLabelValues(p.kind).Add(float64(len(res.Records)))

	p.logger.Info().
		Str("url", pageURL).
		Int("records", len(res.Records)).
		Int("target", target).
		Str("stop", string(res.Stop)).
		Dur("duration", time.Since(start)).
		Msg("Collection complete")

	return res, nil
}

// fetchPage renders and extracts the page described by outcome. Page 1 is
// fetched with the URL as given.
func (p *Pipeline[T]) fetchPage(ctx context.Context, outcome *PageOutcome, opts scrape.Options) (extract.PageResult[T], error) {
	if err := ctx.Err(); err != nil {
		return extract.PageResult[T]{}, err
	}
	if outcome.Page > 1 {
		u, err := WithPage(outcome.URL, outcome.Page)
		if err != nil {
			return extract.PageResult[T]{}, err
		}
		outcome.URL = u
	}
	doc, err := p.fetcher.Scrape(ctx, outcome.URL, opts)
	if err != nil {
		return extract.PageResult[T]{}, err
	}
	return p.extract(doc), nil
}

// deliver hands a page's records to the registered PageFunc.
func (p *Pipeline[T]) deliver(ctx context.Context, outcome PageOutcome, records []T) error {
	if p.onPage == nil || len(records) == 0 {
		return nil
	}
	if err := p.onPage(ctx, outcome, records); err != nil {
		return fmt.Errorf("page %d: %w", outcome.Page, err)
	}
	return nil
}

func (p *Pipeline[T]) observe(mode string, records int) {
	if records == 0 {
		pagesFetched.WithLabelValues(mode, outcomeEmpty).Inc()
		return
	}
	pagesFetched.WithLabelValues(mode, outcomeOK).Inc()
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return nil
}
