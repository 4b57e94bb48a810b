// Package scrape is the client for the managed scraping backend that renders
// G2 pages. It adds retries, a Redis page cache and API credit tracking on top
// of the backend's /scrape endpoint.
package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/g2-scraper/pkg/cache"
	"github.com/Sternrassler/g2-scraper/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the scraping backend's API root.
const DefaultBaseURL = "https://api.scrapfly.io"

// Client is the scraping backend client.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	credits    *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// APIKey authenticates against the backend (REQUIRED).
	APIKey string

	// BaseURL overrides the backend root, mostly for tests.
	BaseURL string

	// Redis enables the local page cache and shared credit tracking.
	// Optional: both are skipped when nil.
	Redis *redis.Client

	// PageCacheTTL is how long rendered pages stay in the local cache.
	PageCacheTTL time.Duration

	// BackendCache asks the backend to serve cached renders when allowed.
	// Options.BypassCache always wins over this switch.
	BackendCache bool

	// MaxConcurrency bounds ConcurrentScrape. The backend also limits
	// concurrency per account; exceeding it yields 429s.
	MaxConcurrency int

	// Timeout per backend call. Rendering with anti-bot bypass is slow.
	Timeout time.Duration

	// RetryConfigFor picks the retry schedule per error class.
	RetryConfigFor func(ErrorClass) RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:         apiKey,
		BaseURL:        DefaultBaseURL,
		PageCacheTTL:   cache.DefaultTTL,
		BackendCache:   true,
		MaxConcurrency: 5,
		Timeout:        160 * time.Second,
		RetryConfigFor: RetryConfigForErrorClass,
	}
}

// New creates a new scrape client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 160 * time.Second
	}
	if cfg.RetryConfigFor == nil {
		cfg.RetryConfigFor = RetryConfigForErrorClass
	}

	logger := log.With().Str("component", "scrape-client").Logger()

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}

	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis, cfg.PageCacheTTL)
		c.credits = ratelimit.NewTracker(cfg.Redis, logger)
	}

	return c, nil
}

// apiResponse is the subset of the backend's JSON envelope we read.
type apiResponse struct {
	Result struct {
		Content    string `json:"content"`
		StatusCode int    `json:"status_code"`
		URL        string `json:"url"`
		Success    bool   `json:"success"`
		Error      *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"result"`
	Config struct {
		URL string `json:"url"`
	} `json:"config"`
}

// Scrape renders a single page. The local cache is consulted first unless
// opts.BypassCache is set; successful renders are stored back.
func (c *Client) Scrape(ctx context.Context, pageURL string, opts Options) (*Document, error) {
	key := cache.CacheKey{URL: pageURL, Params: opts.fingerprint()}

	if c.cache != nil && !opts.BypassCache {
		entry, err := c.cache.Get(ctx, key)
		switch {
		case err == nil:
			c.logger.Debug().Str("url", pageURL).Msg("Page cache hit")
			scrapeRequestsTotal.WithLabelValues("cache_hit").Inc()
			return &Document{
				URL:        entry.URL,
				FinalURL:   entry.FinalURL,
				StatusCode: entry.StatusCode,
				Content:    entry.Content,
				FromCache:  true,
			}, nil
		case errors.Is(err, cache.ErrCacheMiss):
			c.logger.Debug().Str("url", pageURL).Msg("Page cache miss")
		default:
			c.logger.Warn().Err(err).Str("url", pageURL).Msg("Page cache get error")
		}
	}

	if c.credits != nil {
		allowed, err := c.credits.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Credit check failed, proceeding")
		} else if !allowed {
			scrapeRequestsTotal.WithLabelValues("blocked").Inc()
			return nil, fmt.Errorf("%s: %w", pageURL, ErrRequestBlocked)
		}
	}

	var doc *Document
	start := time.Now()
	err := retryWithBackoff(ctx, c.config.RetryConfigFor, func() error {
		var reqErr error
		doc, reqErr = c.do(ctx, pageURL, opts)
		return reqErr
	}, ClassOf)
	scrapeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if isRetryExhausted(err) {
			c.logger.Error().Err(err).Str("url", pageURL).Msg("Scrape failed after retries")
		}
		return nil, err
	}

	if c.cache != nil && !opts.BypassCache {
		entry := cache.NewEntry(doc.URL, doc.FinalURL, doc.StatusCode, doc.Content, c.cache.TTL())
		if err := c.cache.Set(ctx, key, entry); err != nil {
			c.logger.Warn().Err(err).Str("url", pageURL).Msg("Failed to cache page")
		}
	}

	return doc, nil
}

// do performs one backend call without retries.
func (c *Client) do(ctx context.Context, pageURL string, opts Options) (*Document, error) {
	q := url.Values{}
	q.Set("key", c.config.APIKey)
	q.Set("url", pageURL)
	opts.apply(q, c.config.BackendCache)

	endpoint := strings.TrimSuffix(c.config.BaseURL, "/") + "/scrape?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("url", pageURL).
		Bool("render_js", opts.RenderJS).
		Bool("bypass_cache", opts.BypassCache).
		Msg("Executing scrape request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		scrapeErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		scrapeRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, &ScrapeError{
			URL:        pageURL,
			ErrorClass: ErrorClassNetwork,
			Message:    "backend unreachable",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	if c.credits != nil {
		if err := c.credits.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update credit state from headers")
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		scrapeErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &ScrapeError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	if resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		scrapeErrorsTotal.WithLabelValues(string(class)).Inc()
		scrapeRequestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

		c.logger.Warn().
			Str("url", pageURL).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Backend request error")

		return nil, &ScrapeError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    backendMessage(body, resp.Status),
		}
	}

	var payload apiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		scrapeErrorsTotal.WithLabelValues(string(ErrorClassServer)).Inc()
		return nil, &ScrapeError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassServer,
			Message:    "decode backend response",
			Err:        err,
		}
	}

	result := payload.Result
	if !result.Success || result.StatusCode >= 400 {
		msg := fmt.Sprintf("target returned %d", result.StatusCode)
		if result.Error != nil {
			msg = result.Error.Code + ": " + result.Error.Message
		}
		scrapeErrorsTotal.WithLabelValues(string(ErrorClassTarget)).Inc()
		scrapeRequestsTotal.WithLabelValues("target_error").Inc()
		return nil, &ScrapeError{
			URL:        pageURL,
			StatusCode: result.StatusCode,
			ErrorClass: ErrorClassTarget,
			Message:    msg,
		}
	}

	scrapeRequestsTotal.WithLabelValues("200").Inc()

	requested := payload.Config.URL
	if requested == "" {
		requested = pageURL
	}
	finalURL := result.URL
	if finalURL == "" {
		finalURL = requested
	}

	return &Document{
		URL:        requested,
		FinalURL:   finalURL,
		StatusCode: result.StatusCode,
		Content:    result.Content,
	}, nil
}

// classifyStatus categorizes a backend HTTP status.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}

// backendMessage extracts the backend's error message from an error body.
func backendMessage(body []byte, fallback string) string {
	var e struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		if e.Code != "" {
			return e.Code + ": " + e.Message
		}
		return e.Message
	}
	return fallback
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
