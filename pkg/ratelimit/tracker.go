package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for credit tracking.
var (
	creditsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "g2_scrape_credits_remaining",
		Help: "Scraping API credits remaining on the account",
	})

	creditsSpentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "g2_scrape_credits_spent_total",
		Help: "Scraping API credits spent by this process",
	})

	creditBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "g2_scrape_credit_blocks_total",
		Help: "Total number of requests blocked due to a critical credit balance",
	})

	creditThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "g2_scrape_credit_throttles_total",
		Help: "Total number of requests throttled due to a low credit balance",
	})
)

// DefaultThrottleDelay is the pause applied to each request in warning state.
const DefaultThrottleDelay = 1 * time.Second

// Tracker monitors the credit balance and gates requests.
type Tracker struct {
	redis         *redis.Client
	logger        zerolog.Logger
	throttleDelay time.Duration
	maxAge        time.Duration
}

// NewTracker creates a new credit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:         redisClient,
		logger:        logger,
		throttleDelay: DefaultThrottleDelay,
		maxAge:        DefaultStateMaxAge,
	}
}

// SetThrottleDelay changes the warning-state pause (for testing).
func (t *Tracker) SetThrottleDelay(d time.Duration) {
	t.throttleDelay = d
}

// SetStateMaxAge changes how long a recorded balance is enforced.
func (t *Tracker) SetStateMaxAge(d time.Duration) {
	t.maxAge = d
}

// GetState retrieves the current credit state from Redis.
// Returns a default healthy state if no data exists in Redis.
func (t *Tracker) GetState(ctx context.Context) (*CreditState, error) {
	remaining, err := t.redis.Get(ctx, RedisKeyCreditsRemaining).Int()
	if err == redis.Nil {
		t.logger.Debug().Msg("No credit state in Redis, assuming healthy")
		return &CreditState{
			CreditsRemaining: CreditThresholdHealthy,
			LastUpdate:       time.Now(),
			IsHealthy:        true,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credits remaining: %w", err)
	}

	lastCost, err := t.redis.Get(ctx, RedisKeyLastCost).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last cost: %w", err)
	}

	lastUpdateStr, err := t.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state := &CreditState{
		CreditsRemaining: remaining,
		LastCost:         lastCost,
		LastUpdate:       lastUpdate,
	}
	state.UpdateHealth()

	return state, nil
}

// ParseHeaders reads the credit headers of a backend response. ok is false
// when the response carries no credit information.
func ParseHeaders(headers http.Header) (state *CreditState, ok bool, err error) {
	remainStr := headers.Get(HeaderRemainingCredit)
	if remainStr == "" {
		return nil, false, nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s header: %w", HeaderRemainingCredit, err)
	}

	cost := 0
	if costStr := headers.Get(HeaderAPICost); costStr != "" {
		cost, err = strconv.Atoi(costStr)
		if err != nil {
			return nil, false, fmt.Errorf("parse %s header: %w", HeaderAPICost, err)
		}
	}

	state = &CreditState{
		CreditsRemaining: remain,
		LastCost:         cost,
		LastUpdate:       time.Now(),
	}
	state.UpdateHealth()
	return state, true, nil
}

// UpdateFromHeaders parses the credit headers and updates Redis state.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	state, ok, err := ParseHeaders(headers)
	if err != nil || !ok {
		return err
	}

	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyCreditsRemaining, state.CreditsRemaining, 0)
	pipe.Set(ctx, RedisKeyLastCost, state.LastCost, 0)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store credit state in redis: %w", err)
	}

	creditsRemaining.Set(float64(state.CreditsRemaining))
	creditsSpentTotal.Add(float64(state.LastCost))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("credits_remaining", state.CreditsRemaining).
			Msg("Scrape credits CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("credits_remaining", state.CreditsRemaining).
			Int("pages_affordable", state.PagesAffordable()).
			Msg("Scrape credits low - requests will be throttled")
	default:
		t.logger.Debug().
			Int("credits_remaining", state.CreditsRemaining).
			Int("last_cost", state.LastCost).
			Msg("Scrape credit state updated")
	}

	return nil
}

// ShouldAllowRequest checks if a request should be allowed based on the
// current credit state. Returns false when the balance is critical. In
// warning state the call waits for the throttle delay before allowing.
// A stale state is not enforced: the request goes through and its response
// headers refresh the balance.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get credit state: %w", err)
	}

	if !state.Enforceable(t.maxAge) {
		t.logger.Debug().
			Int("credits_remaining", state.CreditsRemaining).
			Time("last_update", state.LastUpdate).
			Msg("Credit state stale - allowing request to refresh it")
		return true, nil
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("credits_remaining", state.CreditsRemaining).
			Msg("Scrape credits critical - blocking request")

		creditBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("credits_remaining", state.CreditsRemaining).
			Msg("Scrape credits low - throttling request")

		creditThrottlesTotal.Inc()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.throttleDelay):
		}
	}

	return true, nil
}
