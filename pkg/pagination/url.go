package pagination

import (
	"fmt"
	"net/url"
	"strconv"
)

// PageParam is the query parameter G2 uses for pagination.
const PageParam = "page"

// WithPage returns rawURL with its page parameter set to page. Other query
// parameters, the scheme, host, path and fragment are preserved; the query is
// re-encoded in key order.
func WithPage(rawURL string, page int) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Set(PageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
