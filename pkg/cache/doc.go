// Package cache stores rendered pages in Redis so repeated runs against the
// same G2 pages do not spend scraping credits twice.
//
// Entries are keyed by the page URL plus the render options that change the
// captured markup. A fetch that must observe fresh content (target-count
// review collection) skips the cache entirely; the cache itself has no notion
// of bypassing.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient, 6*time.Hour)
//
//	key := cache.CacheKey{
//		URL:    "https://www.g2.com/products/asana/reviews?page=2",
//		Params: map[string]string{"render_js": "true"},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// scrape, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(url, finalURL, 200, html, manager.TTL()))
//	}
//
// # Metrics
//
//   - g2_cache_hits_total - Cache hits
//   - g2_cache_misses_total - Cache misses
//   - g2_cache_stored_bytes - Bytes written to the cache
//   - g2_cache_errors_total{operation} - Cache operation errors
package cache
