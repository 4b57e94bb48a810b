// Package ratelimit tracks the scraping backend's API credit balance and gates
// requests before the account runs dry. The balance is read from the
// X-Scrapfly-Remaining-Api-Credit response header and shared across processes
// through Redis, so parallel runs on one account see the same budget.
package ratelimit

import (
	"time"
)

// Redis keys for credit state storage.
const (
	RedisKeyCreditsRemaining = "g2:credits:remaining"
	RedisKeyLastCost         = "g2:credits:last_cost"
	RedisKeyLastUpdate       = "g2:credits:last_update"
)

// Response headers carrying the account state.
const (
	HeaderRemainingCredit = "X-Scrapfly-Remaining-Api-Credit"
	HeaderAPICost         = "X-Scrapfly-Api-Cost"
)

// DefaultStateMaxAge is how long a recorded balance gates requests. An older
// balance may predate a top-up and is only refreshed by a response.
const DefaultStateMaxAge = 5 * time.Minute

// Thresholds for credit decisions. A rendered G2 page with anti-bot
// protection and a residential proxy costs roughly 25-30 credits.
const (
	// CreditThresholdCritical blocks all requests below this balance.
	CreditThresholdCritical = 100

	// CreditThresholdWarning throttles requests below this balance.
	CreditThresholdWarning = 1000

	// CreditThresholdHealthy indicates normal operation.
	CreditThresholdHealthy = 5000
)

// CreditState represents the last known account credit state.
type CreditState struct {
	// CreditsRemaining is the account balance after the last request.
	CreditsRemaining int `json:"credits_remaining"`

	// LastCost is what the last request cost.
	LastCost int `json:"last_cost"`

	// LastUpdate is when this state was last updated.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when CreditsRemaining >= CreditThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *CreditState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// Enforceable returns true if the state is recent enough to block or throttle
// requests. A state without an update time never is.
func (s *CreditState) Enforceable(maxAge time.Duration) bool {
	return !s.LastUpdate.IsZero() && !s.IsStale(maxAge)
}

// NeedsCriticalBlock returns true if requests should be blocked.
func (s *CreditState) NeedsCriticalBlock() bool {
	return s.CreditsRemaining < CreditThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *CreditState) NeedsThrottling() bool {
	return s.CreditsRemaining < CreditThresholdWarning && !s.NeedsCriticalBlock()
}

// PagesAffordable estimates how many more pages the balance pays for at the
// last observed cost. Returns -1 when no cost has been observed yet.
func (s *CreditState) PagesAffordable() int {
	if s.LastCost <= 0 {
		return -1
	}
	return s.CreditsRemaining / s.LastCost
}

// UpdateHealth updates the IsHealthy field based on current CreditsRemaining.
func (s *CreditState) UpdateHealth() {
	s.IsHealthy = s.CreditsRemaining >= CreditThresholdHealthy
}
