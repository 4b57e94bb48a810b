// Package config loads the run input and runtime settings.
//
// The run input uses the actor input keys (scrapflyApiKey, productUrl, ...)
// and is read from a JSON or YAML document. Environment variables override
// the document; CLI flags override both.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ScrapeType selects the primary collection.
type ScrapeType string

const (
	ScrapeReviews ScrapeType = "reviews"
	ScrapeSearch  ScrapeType = "search"
)

// Defaults.
const (
	DefaultNumberOfReviews = 5
	DefaultSearchMaxPages  = 3
	DefaultConcurrency     = 5
)

var (
	ErrMissingAPIKey      = errors.New("missing required input: scrapflyApiKey")
	ErrMissingProductURL  = errors.New("missing required input: productUrl")
	ErrInvalidScrapeType  = errors.New("invalid scrapeType")
	ErrInvalidLimit       = errors.New("invalid limit")
	ErrInvalidConcurrency = errors.New("invalid concurrency")
)

// Input is the run input document.
type Input struct {
	APIKey          string     `json:"scrapflyApiKey" yaml:"scrapflyApiKey"`
	ProductURL      string     `json:"productUrl" yaml:"productUrl"`
	ScrapeType      ScrapeType `json:"scrapeType" yaml:"scrapeType"`
	NumberOfReviews int        `json:"numberOfReviews" yaml:"numberOfReviews"`
	// MaxPages switches review collection to a fixed page count. 0 means
	// unset: collect until NumberOfReviews.
	MaxPages       int    `json:"maxPages" yaml:"maxPages"`
	EnableSearch   bool   `json:"enableSearch" yaml:"enableSearch"`
	SearchURL      string `json:"searchUrl" yaml:"searchUrl"`
	SearchMaxPages int    `json:"searchMaxPages" yaml:"searchMaxPages"`
	// Cache enables the backend cache for page-count collections.
	// Target-count collections always bypass it.
	Cache bool `json:"cache" yaml:"cache"`
}

// Runtime holds process settings that are not part of the run input.
type Runtime struct {
	RedisURL    string
	DatabaseURL string
	OutputPath  string
	LogLevel    string
	LogPretty   bool
	MetricsAddr string
	BaseURL     string
	Concurrency int
}

// Config is the complete configuration of a run.
type Config struct {
	Input
	Runtime
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Input: Input{
			ScrapeType:      ScrapeReviews,
			NumberOfReviews: DefaultNumberOfReviews,
			SearchMaxPages:  DefaultSearchMaxPages,
			Cache:           true,
		},
		Runtime: Runtime{
			LogLevel:    "info",
			Concurrency: DefaultConcurrency,
		},
	}
}

// Load reads the input document at path (optional) on top of the defaults
// and applies environment overrides. It does not validate.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read input %s: %w", path, err)
		}
		if err := cfg.ParseInput(data); err != nil {
			return cfg, fmt.Errorf("parse input %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseInput decodes a JSON or YAML input document into c. Keys absent from
// the document keep their current values.
func (c *Config) ParseInput(data []byte) error {
	// Tab-indented JSON is not valid YAML.
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return json.Unmarshal(trimmed, &c.Input)
	}
	return yaml.Unmarshal(data, &c.Input)
}

// ApplyEnv overrides settings from the environment. getenv is os.Getenv
// outside tests.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	env := func(key, defaultValue string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return defaultValue
	}

	c.APIKey = env("SCRAPFLY_API_KEY", c.APIKey)
	c.ProductURL = env("G2_PRODUCT_URL", c.ProductURL)
	c.ScrapeType = ScrapeType(env("G2_SCRAPE_TYPE", string(c.ScrapeType)))

	c.RedisURL = env("REDIS_URL", c.RedisURL)
	c.DatabaseURL = env("DATABASE_URL", c.DatabaseURL)
	c.OutputPath = env("OUTPUT_PATH", c.OutputPath)
	c.LogLevel = env("LOG_LEVEL", c.LogLevel)
	c.MetricsAddr = env("METRICS_ADDR", c.MetricsAddr)
	c.BaseURL = env("SCRAPFLY_BASE_URL", c.BaseURL)

	if v := getenv("LOG_PRETTY"); v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_PRETTY: %w", err)
		}
		c.LogPretty = pretty
	}
	if v := getenv("SCRAPE_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCRAPE_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	return nil
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.ProductURL = strings.TrimSpace(c.ProductURL)

	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.ProductURL == "" {
		return ErrMissingProductURL
	}
	switch c.ScrapeType {
	case ScrapeReviews, ScrapeSearch:
	default:
		return fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidScrapeType, c.ScrapeType, ScrapeReviews, ScrapeSearch)
	}
	if c.NumberOfReviews < 0 {
		return fmt.Errorf("%w: numberOfReviews %d", ErrInvalidLimit, c.NumberOfReviews)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("%w: maxPages %d", ErrInvalidLimit, c.MaxPages)
	}
	if c.SearchMaxPages < 0 {
		return fmt.Errorf("%w: searchMaxPages %d", ErrInvalidLimit, c.SearchMaxPages)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidConcurrency, c.Concurrency)
	}
	return nil
}

// SearchTarget is the URL for search collections, defaulting to the product URL.
func (c *Config) SearchTarget() string {
	if c.SearchURL != "" {
		return c.SearchURL
	}
	return c.ProductURL
}
