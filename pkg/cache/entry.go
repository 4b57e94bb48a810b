package cache

import (
	"time"
)

// CacheEntry represents a cached rendered page.
type CacheEntry struct {
	// URL is the requested page URL.
	URL string `json:"url"`

	// FinalURL is the URL after redirects.
	FinalURL string `json:"final_url"`

	// StatusCode is the target site's status code.
	StatusCode int `json:"status_code"`

	// Content is the rendered HTML.
	Content string `json:"content"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this page.
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry builds an entry that expires after ttl.
func NewEntry(pageURL, finalURL string, statusCode int, content string, ttl time.Duration) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		URL:        pageURL,
		FinalURL:   finalURL,
		StatusCode: statusCode,
		Content:    content,
		Expires:    now.Add(ttl),
		CachedAt:   now,
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
