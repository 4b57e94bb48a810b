package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/g2-scraper/internal/testutil"
	"github.com/Sternrassler/g2-scraper/pkg/config"
	"github.com/Sternrassler/g2-scraper/pkg/pagination"
	"github.com/Sternrassler/g2-scraper/pkg/scrape"
	"github.com/Sternrassler/g2-scraper/pkg/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	productURL = "https://www.g2.com/products/asana/reviews"
	searchURL  = "https://www.g2.com/search?query=project+management"
)

type recordingReporter struct {
	mu       sync.Mutex
	statuses []string
	success  string
	failure  string
	err      error
}

func (r *recordingReporter) Status(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, msg)
}

func (r *recordingReporter) Succeed(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success = msg
}

func (r *recordingReporter) Fail(msg string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure = msg
	r.err = err
}

func noRetry(scrape.ErrorClass) scrape.RetryConfig {
	return scrape.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}
}

func newClient(t *testing.T, backend *testutil.MockBackend) *scrape.Client {
	t.Helper()
	cfg := scrape.DefaultConfig("scp-test")
	cfg.BaseURL = backend.URL()
	cfg.Timeout = 5 * time.Second
	cfg.RetryConfigFor = noRetry
	c, err := scrape.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func baseConfig() config.Config {
	cfg := config.Default()
	cfg.APIKey = "scp-test"
	cfg.ProductURL = productURL
	return cfg
}

func pageURL(t *testing.T, raw string, page int) string {
	t.Helper()
	u, err := pagination.WithPage(raw, page)
	require.NoError(t, err)
	return u
}

func readItems(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var items []map[string]any
	sc := bufio.NewScanner(buf)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		items = append(items, m)
	}
	return items
}

func setReviewPages(t *testing.T, backend *testutil.MockBackend, total int, perPage ...int) {
	for i, n := range perPage {
		page := i + 1
		u := productURL
		if page > 1 {
			u = pageURL(t, productURL, page)
		}
		backend.SetHTML(u, testutil.ReviewPage("Asana", total, testutil.Reviews(string(rune('a'+i)), n)...))
	}
}

func TestRun_ReviewsByTarget(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()
	setReviewPages(t, backend, 12, 4, 4, 4)

	cfg := baseConfig()
	cfg.NumberOfReviews = 6

	var out bytes.Buffer
	rep := &recordingReporter{}
	r := New(cfg, newClient(t, backend), sink.NewJSONLines(&out), rep)

	n, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	assert.Equal(t, []string{"Scraping reviews (target: 6)...", "Saving results to dataset..."}, rep.statuses)
	assert.Equal(t, "Completed! Scraped 6 items", rep.success)
	assert.Empty(t, rep.failure)

	items := readItems(t, &out)
	require.Len(t, items, 6)
	for _, it := range items {
		assert.Equal(t, "reviews", it["_dataType"])
	}

	assert.Equal(t, 2, backend.RequestCount())
	for _, q := range backend.Requests() {
		assert.Equal(t, "false", q.Get("cache"), "target-count pages must bypass the cache")
		assert.Equal(t, "true", q.Get("auto_scroll"))
		assert.Equal(t, scrape.ReviewSelector, q.Get("wait_for_selector"))
	}
}

func TestRun_ReviewsByMaxPages(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()
	setReviewPages(t, backend, 30, 10, 10, 10)

	cfg := baseConfig()
	cfg.MaxPages = 2

	var out bytes.Buffer
	rep := &recordingReporter{}
	n, err := New(cfg, newClient(t, backend), sink.NewJSONLines(&out), rep).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 20, n)
	assert.Equal(t, []string{
		"Scraping reviews (target: 5)...",
		"Saving results to dataset...",
		"Scraping 1 remaining pages...",
	}, rep.statuses)
	assert.Equal(t, 0, backend.TargetCount(pageURL(t, productURL, 3)))
	assert.Equal(t, 1, backend.TargetCount(pageURL(t, productURL, 2)))
	assert.Equal(t, "Completed! Scraped 20 items", rep.success)
}

func TestRun_Search(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()

	card := func(name string) testutil.ListingCard {
		return testutil.ListingCard{Name: name, Href: "/products/" + name + "/reviews"}
	}
	backend.SetHTML(searchURL, testutil.SearchPage(45, card("asana"), card("trello")))
	backend.SetHTML(pageURL(t, searchURL, 2), testutil.SearchPage(45, card("jira")))
	backend.SetHTML(pageURL(t, searchURL, 3), testutil.SearchPage(45, card("wrike")))

	cfg := baseConfig()
	cfg.ScrapeType = config.ScrapeSearch
	cfg.SearchURL = searchURL
	cfg.SearchMaxPages = 2
	cfg.Cache = false

	var out bytes.Buffer
	rep := &recordingReporter{}
	n, err := New(cfg, newClient(t, backend), sink.NewJSONLines(&out), rep).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.Equal(t, "Scraping search results (max 2 pages)...", rep.statuses[0])

	var names []string
	for _, it := range readItems(t, &out) {
		assert.Equal(t, "search", it["_dataType"])
		names = append(names, it["name"].(string))
	}
	assert.ElementsMatch(t, []string{"asana", "trello", "jira"}, names)
	assert.Equal(t, 0, backend.TargetCount(pageURL(t, searchURL, 3)))
	for _, q := range backend.Requests() {
		assert.Equal(t, "false", q.Get("cache"))
	}
}

func TestRun_EnableSearch(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()
	setReviewPages(t, backend, 2, 2)
	backend.SetHTML(searchURL, testutil.SearchPage(1, testutil.ListingCard{Name: "Asana", Href: "/products/asana/reviews"}))

	cfg := baseConfig()
	cfg.NumberOfReviews = 2
	cfg.EnableSearch = true
	cfg.SearchURL = searchURL

	var out bytes.Buffer
	rep := &recordingReporter{}
	n, err := New(cfg, newClient(t, backend), sink.NewJSONLines(&out), rep).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, []string{
		"Scraping reviews (target: 2)...",
		"Saving results to dataset...",
		"Scraping additional search results...",
	}, rep.statuses)

	items := readItems(t, &out)
	require.Len(t, items, 3)
	assert.Equal(t, "reviews", items[0]["_dataType"])
	assert.Equal(t, "reviews", items[1]["_dataType"])
	assert.Equal(t, "search", items[2]["_dataType"])
}

func TestRun_FirstPageFailure(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()
	backend.SetPage(searchURL, testutil.MockPage{BackendStatus: http.StatusInternalServerError})

	cfg := baseConfig()
	cfg.ScrapeType = config.ScrapeSearch
	cfg.SearchURL = searchURL

	var out bytes.Buffer
	rep := &recordingReporter{}
	n, err := New(cfg, newClient(t, backend), sink.NewJSONLines(&out), rep).Run(context.Background())

	require.Error(t, err)
	assert.Zero(t, n)
	assert.Contains(t, rep.failure, "Scraping failed: ")
	assert.Empty(t, rep.success)
	assert.Zero(t, out.Len())
}

func TestRun_PartialReviewsAreSuccess(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()
	setReviewPages(t, backend, 30, 3)
	backend.SetPage(pageURL(t, productURL, 2), testutil.MockPage{TargetStatus: http.StatusForbidden})

	cfg := baseConfig()
	cfg.NumberOfReviews = 10

	var out bytes.Buffer
	rep := &recordingReporter{}
	n, err := New(cfg, newClient(t, backend), sink.NewJSONLines(&out), rep).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "Completed! Scraped 3 items", rep.success)
}

func TestRun_SinkFailure(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()
	setReviewPages(t, backend, 2, 2)

	cfg := baseConfig()
	cfg.NumberOfReviews = 2

	out := sink.NewJSONLines(&bytes.Buffer{})
	require.NoError(t, out.Close())

	rep := &recordingReporter{}
	_, err := New(cfg, newClient(t, backend), out, rep).Run(context.Background())

	assert.ErrorIs(t, err, sink.ErrClosed)
	assert.ErrorIs(t, rep.err, sink.ErrClosed)
	assert.Contains(t, rep.failure, "sink closed")
}

func TestRun_InvalidScrapeType(t *testing.T) {
	cfg := baseConfig()
	cfg.ScrapeType = "pricing"

	rep := &recordingReporter{}
	_, err := New(cfg, nil, sink.NewJSONLines(&bytes.Buffer{}), rep).Run(context.Background())
	assert.ErrorIs(t, err, config.ErrInvalidScrapeType)
	assert.Empty(t, rep.statuses)
}

func TestRunID(t *testing.T) {
	a := New(baseConfig(), nil, nil, &recordingReporter{})
	b := New(baseConfig(), nil, nil, &recordingReporter{})
	assert.NotEqual(t, a.RunID(), b.RunID())
}

// cancellingFetcher serves page 1 and cancels the run while page 2 is being
// fetched, as SIGINT would.
type cancellingFetcher struct {
	cancel context.CancelFunc
	first  string
}

func (f *cancellingFetcher) Scrape(ctx context.Context, u string, _ scrape.Options) (*scrape.Document, error) {
	if u == productURL {
		return scrape.NewDocument(u, f.first), nil
	}
	f.cancel()
	return nil, ctx.Err()
}

func (f *cancellingFetcher) ConcurrentScrape(context.Context, []scrape.Request) <-chan scrape.Result {
	out := make(chan scrape.Result)
	close(out)
	return out
}

func TestRun_CancelledKeepsCollectedRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := &cancellingFetcher{
		cancel: cancel,
		first:  testutil.ReviewPage("Asana", 40, testutil.Reviews("first", 10)...),
	}

	cfg := baseConfig()
	cfg.NumberOfReviews = 25

	var out bytes.Buffer
	rep := &recordingReporter{}
	n, err := New(cfg, fetcher, sink.NewJSONLines(&out), rep).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 10, n)
	assert.Len(t, readItems(t, &out), 10)
	assert.Contains(t, rep.failure, "interrupted after 10 items")
	assert.Empty(t, rep.success)
}

func TestRun_ReviewsPushedBeforeSearchFails(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()
	setReviewPages(t, backend, 2, 2)
	backend.SetPage(searchURL, testutil.MockPage{BackendStatus: http.StatusInternalServerError})

	cfg := baseConfig()
	cfg.NumberOfReviews = 2
	cfg.EnableSearch = true
	cfg.SearchURL = searchURL

	var out bytes.Buffer
	rep := &recordingReporter{}
	n, err := New(cfg, newClient(t, backend), sink.NewJSONLines(&out), rep).Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, 2, n)
	items := readItems(t, &out)
	require.Len(t, items, 2)
	assert.Equal(t, "reviews", items[0]["_dataType"])
	assert.Contains(t, rep.failure, "scrape search")
}

func TestRun_SearchModeSkipsAdditionalPass(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()
	backend.SetHTML(searchURL, testutil.SearchPage(1, testutil.ListingCard{Name: "Asana", Href: "/products/asana/reviews"}))

	cfg := baseConfig()
	cfg.ScrapeType = config.ScrapeSearch
	cfg.SearchURL = searchURL
	cfg.EnableSearch = true

	var out bytes.Buffer
	rep := &recordingReporter{}
	n, err := New(cfg, newClient(t, backend), sink.NewJSONLines(&out), rep).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, 1, backend.TargetCount(searchURL))
	assert.NotContains(t, rep.statuses, "Scraping additional search results...")
}
