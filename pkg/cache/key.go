package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces page entries in Redis.
const KeyPrefix = "g2:page"

// CacheKey identifies a rendered page.
type CacheKey struct {
	// URL is the page URL, including the page query parameter.
	URL string

	// Params are the render options that affect the captured markup.
	Params map[string]string
}

// String generates a deterministic cache key string.
// Query parameters of the URL are sorted, so two URLs that differ only in
// parameter order share an entry.
//
// Example:
//
//	g2:page:www.g2.com/products/asana/reviews?page=2:asp=true:render_js=true
func (k CacheKey) String() string {
	parts := []string{KeyPrefix, normalizeURL(k.URL)}

	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.Params[key]))
		}
	}

	return strings.Join(parts, ":")
}

// normalizeURL drops the scheme and fragment and sorts the query.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	out := u.Host + u.EscapedPath()
	if u.RawQuery != "" {
		// Encode sorts by key.
		out += "?" + u.Query().Encode()
	}
	return out
}
