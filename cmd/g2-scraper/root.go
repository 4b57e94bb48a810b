package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Sternrassler/g2-scraper/internal/runner"
	"github.com/Sternrassler/g2-scraper/pkg/config"
	"github.com/Sternrassler/g2-scraper/pkg/logging"
	"github.com/Sternrassler/g2-scraper/pkg/metrics"
	"github.com/Sternrassler/g2-scraper/pkg/scrape"
	"github.com/Sternrassler/g2-scraper/pkg/sink"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "g2-scraper",
		Short: "Scrape G2 product reviews and search results",
		Long: `g2-scraper renders G2 pages through the scraping backend, extracts reviews
or product listings, and pushes every record to a dataset sink.

Input is read from a JSON or YAML document (--input) using the actor input
keys, then overridden by environment variables and flags.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "g2-scraper %s\n", version)
		},
	}
}

// runFlags mirror the configuration keys. Only flags set on the command
// line override the loaded configuration.
type runFlags struct {
	input          string
	apiKey         string
	productURL     string
	scrapeType     string
	reviews        int
	maxPages       int
	enableSearch   bool
	searchURL      string
	searchMaxPages int
	noCache        bool
	output         string
	redisURL       string
	databaseURL    string
	metricsAddr    string
	baseURL        string
	logLevel       string
	logPretty      bool
	concurrency    int
}

func newRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scrape",
		Example: `  g2-scraper run --input input.json
  SCRAPFLY_API_KEY=... g2-scraper run --product-url https://www.g2.com/products/asana/reviews --reviews 25
  g2-scraper run -i input.yaml --scrape-type search --search-max-pages 5 -o listings.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(f.input)
			if err != nil {
				return err
			}
			f.apply(cmd.Flags(), &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logging.Setup(logConfig(cfg, cmd.ErrOrStderr()))

			_, err = execute(ctx, cfg, cmd.OutOrStdout())
			return err
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "input document (JSON or YAML)")
	fl.StringVar(&f.apiKey, "api-key", "", "scraping backend API key (SCRAPFLY_API_KEY)")
	fl.StringVar(&f.productURL, "product-url", "", "G2 product reviews URL (G2_PRODUCT_URL)")
	fl.StringVar(&f.scrapeType, "scrape-type", "", "reviews or search (G2_SCRAPE_TYPE)")
	fl.IntVar(&f.reviews, "reviews", config.DefaultNumberOfReviews, "number of reviews to collect")
	fl.IntVar(&f.maxPages, "max-pages", 0, "fetch a fixed number of review pages instead of a review count")
	fl.BoolVar(&f.enableSearch, "enable-search", false, "also collect search results")
	fl.StringVar(&f.searchURL, "search-url", "", "search or category URL (default: product URL)")
	fl.IntVar(&f.searchMaxPages, "search-max-pages", config.DefaultSearchMaxPages, "maximum search pages")
	fl.BoolVar(&f.noCache, "no-cache", false, "bypass the backend and page caches")
	fl.StringVarP(&f.output, "output", "o", "", "JSON lines output file (OUTPUT_PATH, default stdout)")
	fl.StringVar(&f.redisURL, "redis-url", "", "Redis for the page cache and credit tracking (REDIS_URL)")
	fl.StringVar(&f.databaseURL, "database-url", "", "PostgreSQL dataset sink (DATABASE_URL)")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address (METRICS_ADDR)")
	fl.StringVar(&f.baseURL, "base-url", "", "scraping backend root (SCRAPFLY_BASE_URL)")
	fl.StringVar(&f.logLevel, "log-level", "", "trace, debug, info, warn or error (LOG_LEVEL)")
	fl.BoolVar(&f.logPretty, "log-pretty", false, "human-readable logs (LOG_PRETTY)")
	fl.IntVar(&f.concurrency, "concurrency", config.DefaultConcurrency, "concurrent page renders (SCRAPE_CONCURRENCY)")

	return cmd
}

func (f *runFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}
	set("api-key", func() { cfg.APIKey = f.apiKey })
	set("product-url", func() { cfg.ProductURL = f.productURL })
	set("scrape-type", func() { cfg.ScrapeType = config.ScrapeType(f.scrapeType) })
	set("reviews", func() { cfg.NumberOfReviews = f.reviews })
	set("max-pages", func() { cfg.MaxPages = f.maxPages })
	set("enable-search", func() { cfg.EnableSearch = f.enableSearch })
	set("search-url", func() { cfg.SearchURL = f.searchURL })
	set("search-max-pages", func() { cfg.SearchMaxPages = f.searchMaxPages })
	set("no-cache", func() { cfg.Cache = !f.noCache })
	set("output", func() { cfg.OutputPath = f.output })
	set("redis-url", func() { cfg.RedisURL = f.redisURL })
	set("database-url", func() { cfg.DatabaseURL = f.databaseURL })
	set("metrics-addr", func() { cfg.MetricsAddr = f.metricsAddr })
	set("base-url", func() { cfg.BaseURL = f.baseURL })
	set("log-level", func() { cfg.LogLevel = f.logLevel })
	set("log-pretty", func() { cfg.LogPretty = f.logPretty })
	set("concurrency", func() { cfg.Concurrency = f.concurrency })
}

// logConfig starts from the logging defaults and applies cfg on top.
func logConfig(cfg config.Config, stderr io.Writer) logging.Config {
	lc := logging.DefaultConfig()
	if cfg.LogLevel != "" {
		lc.Level = cfg.LogLevel
	}
	lc.Pretty = cfg.LogPretty
	lc.Output = stderr
	return lc
}

// execute wires the components for cfg and runs the scrape.
func execute(ctx context.Context, cfg config.Config, stdout io.Writer) (int, error) {
	logger := logging.NewLogger("main")

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		var err error
		rdb, err = connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return 0, err
		}
		defer rdb.Close()
		logger.Info().Msg("Connected to Redis, page cache and credit tracking enabled")
	}

	scfg := scrape.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		scfg.BaseURL = cfg.BaseURL
	}
	scfg.Redis = rdb
	scfg.MaxConcurrency = cfg.Concurrency

	client, err := scrape.New(scfg)
	if err != nil {
		return 0, fmt.Errorf("create scrape client: %w", err)
	}
	defer client.Close()

	out, err := openSink(ctx, cfg, stdout)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	r := runner.New(cfg, client, out, runner.NewLogReporter(logging.NewLogger("status")))
	logger.Info().
		Str("run_id", r.RunID().String()).
		Str("scrape_type", string(cfg.ScrapeType)).
		Str("product_url", cfg.ProductURL).
		Msg("Starting run")

	return r.Run(ctx)
}

// connectRedis accepts a redis:// URL or a plain host:port address.
func connectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts := &redis.Options{Addr: redisURL}
	if strings.Contains(redisURL, "://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		opts = parsed
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

func openSink(ctx context.Context, cfg config.Config, stdout io.Writer) (sink.Sink, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := sink.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	case cfg.OutputPath != "" && cfg.OutputPath != "-":
		return sink.OpenJSONLines(cfg.OutputPath)
	default:
		return sink.NewJSONLines(stdout), nil
	}
}
